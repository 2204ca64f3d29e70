package transaction

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

const testOrigin = "http://localhost:5173"

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		extractor   *mockExtractor
		interpreter *mockInterpreter
		service     *Service
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		// One handler per request; some specs make several requests
		for i := 0; i < 8; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	BeforeEach(func() {
		db = newMockDB()
		extractor = &mockExtractor{text: "OCR text"}
		interpreter = &mockInterpreter{response: `[]`, reply: "hi"}
		service = NewService(db, extractor, interpreter, newMockArchive(), SuffixFirstMatch)
		server = NewServerWithMux(service, testOrigin, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	identifiedRequest := func(method, path string, body io.Reader) *http.Request {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		req.AddCookie(&http.Cookie{Name: "user_id", Value: "u1"})
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req
	}

	multipartUpload := func(filename string, content []byte) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return body, writer.FormDataContentType()
	}

	Describe("handleExtractText", func() {
		When("a decodable image is uploaded", func() {
			It("returns the extracted text", func() {
				body, contentType := multipartUpload("notification.png", pngBytes())
				resp, err := http.Post(ghttpServer.URL()+"/api/transactions/extract", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["extracted_text"]).To(Equal("OCR text"))
			})
		})

		When("the upload is not a decodable image", func() {
			It("returns status Bad Request", func() {
				body, contentType := multipartUpload("junk.png", []byte("junk bytes"))
				resp, err := http.Post(ghttpServer.URL()+"/api/transactions/extract", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("no file is provided", func() {
			It("returns status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.Close()).To(Succeed())
				resp, err := http.Post(ghttpServer.URL()+"/api/transactions/extract", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleInterpretText", func() {
		BeforeEach(func() {
			interpreter.response = `[{"reference_number": "REF1"}]`
			setupServer()
		})

		It("returns the raw model response", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/transactions/interpret", "application/json",
				strings.NewReader(`{"text": "some OCR text"}`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`[{"reference_number": "REF1"}]`))
		})

		It("rejects a malformed request body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/transactions/interpret", "application/json",
				strings.NewReader(`{{{`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handlePersistTransactions", func() {
		var batch string

		BeforeEach(func() {
			db.accounts = []*Account{{AccountNumber: "XXXX1815", UserID: "u1"}}
			batch = `[{"account_number": "1815", "credited_debited": "debited", "amount": 20.0, "date": "03/04/25", "reference_number": "REF1", "to_from": "Alice"}]`
		})

		When("the caller carries no identity", func() {
			It("returns status Unauthorized", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/transactions", "application/json",
					strings.NewReader(batch))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})

			It("performs zero writes", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/transactions", "application/json",
					strings.NewReader(batch))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(db.transactions).To(BeEmpty())
			})
		})

		When("the caller is identified", func() {
			It("inserts the batch and reports the result", func() {
				req := identifiedRequest("POST", "/api/transactions", strings.NewReader(batch))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var result PersistResult
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result.InsertedCount).To(Equal(1))
				Expect(result.InsertedTransactions[0].AccountNumber).To(Equal("XXXX1815"))
				Expect(result.InsertedTransactions[0].UserID).To(Equal("u1"))
				Expect(result.InsertedTransactions[0].ID).To(BeEmpty())
			})

			It("rejects a body that is not a JSON array", func() {
				req := identifiedRequest("POST", "/api/transactions", strings.NewReader(`{"not": "an array"}`))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListTransactions", func() {
		BeforeEach(func() {
			db.transactions["tx-1"] = &StoredTransaction{ID: "tx-1", ReferenceNumber: "REF1", UserID: "u1"}
			db.transactions["tx-2"] = &StoredTransaction{ID: "tx-2", ReferenceNumber: "REF2", UserID: "u2"}
		})

		It("requires an identity", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/transactions")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("returns the caller's transactions", func() {
			req := identifiedRequest("GET", "/api/transactions", nil)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var records []*StoredTransaction
			Expect(json.NewDecoder(resp.Body).Decode(&records)).To(Succeed())
			Expect(records).To(HaveLen(1))
			Expect(records[0].ReferenceNumber).To(Equal("REF1"))
		})
	})

	Describe("account management", func() {
		It("registers, lists and deletes an account", func() {
			req := identifiedRequest("POST", "/api/accounts", strings.NewReader(`{"account_number": "50613481815"}`))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			req = identifiedRequest("GET", "/api/accounts", nil)
			resp, err = http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			var accounts []*Account
			Expect(json.NewDecoder(resp.Body).Decode(&accounts)).To(Succeed())
			resp.Body.Close()
			Expect(accounts).To(HaveLen(1))

			req = identifiedRequest("DELETE", "/api/accounts", strings.NewReader(`{"account_number": "50613481815"}`))
			resp, err = http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("returns status Conflict for a duplicate registration", func() {
			for _, expected := range []int{http.StatusCreated, http.StatusConflict} {
				req := identifiedRequest("POST", "/api/accounts", strings.NewReader(`{"account_number": "50613481815"}`))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(expected))
			}
		})

		It("returns status Not Found when deleting an unknown account", func() {
			req := identifiedRequest("DELETE", "/api/accounts", strings.NewReader(`{"account_number": "nope"}`))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("requires an identity", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/accounts", "application/json",
				strings.NewReader(`{"account_number": "50613481815"}`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("handleChat", func() {
		It("returns the assistant reply", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/chat", "application/json",
				strings.NewReader(`{"user_input": "hello"}`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var payload map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
			Expect(payload["reply"]).To(Equal("hi"))
		})
	})

	Describe("CORS", func() {
		It("allows the trusted origin with credentials", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/chat", "application/json",
				strings.NewReader(`{"user_input": "hello"}`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal(testOrigin))
			Expect(resp.Header.Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})

		It("answers preflight requests with No Content", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/api/transactions", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})
})
