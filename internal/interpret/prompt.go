package interpret

import "fmt"

// extractionInstruction is the fixed instruction sent with every extraction
// request. It pins the exact output contract the model must follow; whether
// the model actually followed it is checked downstream, never assumed.
const extractionInstruction = `I will provide you with text extracted from bank transaction messages. Your task is to parse this text and return an array of JSON objects. Each JSON object should represent a single transaction and contain the following keys with their corresponding values:

account_number: The last four digits of the account number (e.g., X1815 should become 1815).
credited_debited: Indicate whether the account was "credited" or "debited".
amount: The transaction amount as a float (e.g., 20.0, 150.0).
date: The date of the transaction in DD/MM/YY format. For example, if the text states 03Apr25, the date should be 03/04/25. Please convert the month abbreviation (e.g., Apr, Jun) to its corresponding two-digit number.
to_from: The name of the recipient (for 'debited' transactions, usually after 'trf to') or sender (for 'credited' transactions, usually after 'transfer from').
reference_number: The transaction reference number, copied verbatim.

Please extract this information for every transaction present in the text and ensure the output is a single JSON array containing all the transaction objects. Do not include any text before or after the JSON array.

Here is the text:
%s
`

// replyInstruction frames the generic assistant endpoint
const replyInstruction = `Be the friendliest chat bot and respond to the customer's query, but keep in mind to give a concise answer.
Give a short summary answer.

Customer message:
%s
`

// extractionPrompt embeds the OCR text verbatim into the fixed instruction
func extractionPrompt(text string) string {
	return fmt.Sprintf(extractionInstruction, text)
}

func replyPrompt(userInput string) string {
	return fmt.Sprintf(replyInstruction, userInput)
}
