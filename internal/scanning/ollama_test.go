package scanning

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/cafe-diary/internal/interpret"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		rec     *interpret.Record
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL(), "", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		rec, err = scanner.ScanReceipt(pngBytes(20, 20), "image/png")
	})

	When("the model returns a receipt", func() {
		BeforeEach(func() {
			reply := `{"store_name": "투썸플레이스", "datetime": "2024-05-01 12:10", "menu_items": [{"name": "딸기 생크림", "price": 6500}], "total_price": 6500}`
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2-vl:7b"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: reply},
					Done:    true,
				}),
			))
		})

		It("should parse the reply", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.StoreName).To(Equal("투썸플레이스"))
			Expect(rec.TotalPrice).To(Equal(6500))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})
})
