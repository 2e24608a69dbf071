package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/luma/resp3d/internal/admin"
	"github.com/luma/resp3d/storage"
)

var _ = Describe("admin / Router", func() {
	var (
		store  *storage.InmemoryStore
		router *gin.Engine
	)

	BeforeEach(func() {
		store = storage.NewInmemoryStore()
		router = admin.NewRouter(admin.Options{Store: store, MaxBodySize: 64})
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeBody := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	It("answers /ping", func() {
		rec := serve(http.MethodGet, "/ping", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("pong"))
	})

	It("answers /health", func() {
		rec := serve(http.MethodGet, "/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(gjson.GetBytes(rec.Body.Bytes(), "status").String()).To(Equal("ok"))
		Expect(gjson.GetBytes(rec.Body.Bytes(), "version").String()).To(Equal("dev"))
	})

	Describe("POST /decode", func() {
		It("renders every message", func() {
			rec := serve(http.MethodPost, "/decode", "+OK\r\n*2\r\n:1\r\n:2\r\n")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rec)).To(Equal(map[string]interface{}{
				"messages": []interface{}{
					"SimpleString[+OK]",
					"Array[*2]{Integer[:1], Integer[:2]}",
				},
			}))
		})

		It("reports protocol errors with their offset", func() {
			rec := serve(http.MethodPost, "/decode", "+OK\r\n?")
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))

			body := rec.Body.Bytes()
			Expect(gjson.GetBytes(body, "messages.#").Int()).To(Equal(int64(1)))
			Expect(gjson.GetBytes(body, "offset").Int()).To(Equal(int64(5)))
			Expect(gjson.GetBytes(body, "error").String()).To(ContainSubstring("unknown type tag"))
		})

		It("reports a protocol error on the very first byte", func() {
			rec := serve(http.MethodPost, "/decode", "?x")
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))

			offset := gjson.GetBytes(rec.Body.Bytes(), "offset")
			Expect(offset.Exists()).To(BeTrue())
			Expect(offset.Int()).To(BeZero())
		})

		It("reports truncated input", func() {
			rec := serve(http.MethodPost, "/decode", "$5\r\nhel")
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(gjson.GetBytes(rec.Body.Bytes(), "error").String()).To(ContainSubstring("incomplete"))
			Expect(gjson.GetBytes(rec.Body.Bytes(), "offset").Exists()).To(BeFalse())
		})

		It("rejects large bodies", func() {
			rec := serve(http.MethodPost, "/decode", "$100\r\n"+strings.Repeat("x", 100)+"\r\n")
			Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
		})
	})

	Describe("POST /encode", func() {
		It("encodes the arguments as a command", func() {
			rec := serve(http.MethodPost, "/encode", `{"args":["SET","foo","bar"]}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
		})

		It("rejects malformed requests", func() {
			rec := serve(http.MethodPost, "/encode", `{"args":`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("dumps the store on /backup", func() {
		Expect(store.Set(context.Background(), "foo", []byte("bar"))).To(Succeed())

		rec := serve(http.MethodGet, "/backup", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"foo":"bar"}`))
	})
})
