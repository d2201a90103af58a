package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/aswan/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("Classify()", func() {
		It("recognises every prefix the agent can send", func() {
			classifications := map[string]protocol.ResponseType{
				"OK":                     protocol.RespOk,
				"OK Pleased to meet you": protocol.RespOk,
				"ERR 1":                  protocol.RespErr,
				"S KEYWORD rest":         protocol.RespStatus,
				"# just a comment":       protocol.RespComment,
				"D abc":                  protocol.RespData,
			}

			for line, want := range classifications {
				respType, err := protocol.Classify([]byte(line))
				Expect(err).To(Succeed())
				Expect(respType).To(Equal(want))
			}
		})

		It("returns an error when no prefix matches", func() {
			_, err := protocol.Classify([]byte("XYZ foo"))
			Expect(errors.Is(err, protocol.ErrUnknownResponseType)).To(BeTrue())
		})

		It("only matches prefixes at the very start of the line", func() {
			_, err := protocol.Classify([]byte("XYZ OK"))
			Expect(errors.Is(err, protocol.ErrUnknownResponseType)).To(BeTrue())
		})

		It("returns an error for an empty line", func() {
			_, err := protocol.Classify([]byte{})
			Expect(errors.Is(err, protocol.ErrUnknownResponseType)).To(BeTrue())
		})
	})

	Describe("ParseResponse()", func() {
		Describe("OK", func() {
			It("has no message for a bare OK", func() {
				resp, err := protocol.ParseResponse([]byte("OK"))
				Expect(err).To(Succeed())
				Expect(resp.Type).To(Equal(protocol.RespOk))

				message, err := resp.AsOk()
				Expect(err).To(Succeed())
				Expect(message).To(Equal(""))
			})

			It("returns the message when one is present", func() {
				resp, err := protocol.ParseResponse([]byte("OK Pleased to meet you"))
				Expect(err).To(Succeed())

				message, err := resp.AsOk()
				Expect(err).To(Succeed())
				Expect(message).To(Equal("Pleased to meet you"))
			})
		})

		Describe("ERR", func() {
			It("parses the code and the description", func() {
				resp, err := protocol.ParseResponse([]byte("ERR 67109139 Unknown IPC method"))
				Expect(err).To(Succeed())

				code, description, err := resp.AsError()
				Expect(err).To(Succeed())
				Expect(code).To(Equal(67109139))
				Expect(description).To(Equal("Unknown IPC method"))
			})

			It("parses a code with no description", func() {
				resp, err := protocol.ParseResponse([]byte("ERR 1"))
				Expect(err).To(Succeed())

				code, description, err := resp.AsError()
				Expect(err).To(Succeed())
				Expect(code).To(Equal(1))
				Expect(description).To(Equal(""))
			})

			It("returns an error when the code is missing", func() {
				_, err := protocol.ParseResponse([]byte("ERR"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())
			})

			It("returns an error when the code is not numeric", func() {
				_, err := protocol.ParseResponse([]byte("ERR abc"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())
			})

			It("rejects a signed code, the grammar allows digits only", func() {
				_, err := protocol.ParseResponse([]byte("ERR -1 nope"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())
			})
		})

		Describe("S", func() {
			It("parses the keyword and the trailing text", func() {
				resp, err := protocol.ParseResponse([]byte("S KEYWORD rest of text"))
				Expect(err).To(Succeed())

				keyword, text, err := resp.AsStatus()
				Expect(err).To(Succeed())
				Expect(keyword).To(Equal("KEYWORD"))
				Expect(text).To(Equal("rest of text"))
			})

			It("parses a bare keyword", func() {
				resp, err := protocol.ParseResponse([]byte("S PROGRESS"))
				Expect(err).To(Succeed())

				keyword, text, err := resp.AsStatus()
				Expect(err).To(Succeed())
				Expect(keyword).To(Equal("PROGRESS"))
				Expect(text).To(Equal(""))
			})

			It("reads identically as a status and as an inquiry", func() {
				resp, err := protocol.ParseResponse([]byte("S KEYWORD rest of text"))
				Expect(err).To(Succeed())

				statusKeyword, statusText, err := resp.AsStatus()
				Expect(err).To(Succeed())

				inquireKeyword, inquireParams, err := resp.AsInquire()
				Expect(err).To(Succeed())

				Expect(inquireKeyword).To(Equal(statusKeyword))
				Expect(inquireParams).To(Equal(statusText))
			})

			It("returns an error when the keyword is missing", func() {
				_, err := protocol.ParseResponse([]byte("S"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())

				_, err = protocol.ParseResponse([]byte("SILLY"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())
			})
		})

		Describe("#", func() {
			It("returns the comment text", func() {
				resp, err := protocol.ParseResponse([]byte("# Home: /root/.gnupg"))
				Expect(err).To(Succeed())

				comment, err := resp.AsComment()
				Expect(err).To(Succeed())
				Expect(comment).To(Equal("Home: /root/.gnupg"))
			})

			It("returns empty text for a bare marker", func() {
				resp, err := protocol.ParseResponse([]byte("#"))
				Expect(err).To(Succeed())

				comment, err := resp.AsComment()
				Expect(err).To(Succeed())
				Expect(comment).To(Equal(""))
			})

			It("tolerates a comment without the space after the marker", func() {
				resp, err := protocol.ParseResponse([]byte("#tight"))
				Expect(err).To(Succeed())

				comment, err := resp.AsComment()
				Expect(err).To(Succeed())
				Expect(comment).To(Equal("tight"))
			})
		})

		Describe("D", func() {
			It("unescapes the payload", func() {
				resp, err := protocol.ParseResponse([]byte("D quick%0Abrown%25fox"))
				Expect(err).To(Succeed())

				data, err := resp.AsData()
				Expect(err).To(Succeed())
				Expect(data).To(Equal([]byte("quick\nbrown%fox")))
			})

			It("round-trips any byte sequence through EncodeData", func() {
				payloads := [][]byte{
					{0x00},
					{0x0a},
					{0x25},
					{0x00, 0x0a, 0x25, 0xff, 0xfe, 0xc3, 0x28},
					[]byte("plain ascii with spaces"),
				}

				for _, payload := range payloads {
					resp, err := protocol.ParseResponse(protocol.EncodeData(payload))
					Expect(err).To(Succeed())

					data, err := resp.AsData()
					Expect(err).To(Succeed())
					Expect(data).To(Equal(payload))
				}
			})

			It("returns an empty payload for a bare prefix", func() {
				resp, err := protocol.ParseResponse([]byte("D "))
				Expect(err).To(Succeed())

				data, err := resp.AsData()
				Expect(err).To(Succeed())
				Expect(data).To(BeEmpty())
			})

			It("returns an error when the payload has a broken escape", func() {
				_, err := protocol.ParseResponse([]byte("D abc%zz"))
				Expect(errors.Is(err, protocol.ErrInvalidEscape)).To(BeTrue())
			})

			It("returns an error when the delimiting space is missing", func() {
				_, err := protocol.ParseResponse([]byte("Dabc"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())

				_, err = protocol.ParseResponse([]byte("D"))
				Expect(errors.Is(err, protocol.ErrResponseParse)).To(BeTrue())
			})
		})

		Describe("reading a response as the wrong type", func() {
			It("refuses to read an ERR as an OK", func() {
				resp, err := protocol.ParseResponse([]byte("ERR 1 nope"))
				Expect(err).To(Succeed())

				_, err = resp.AsOk()
				Expect(errors.Is(err, protocol.ErrResponseTypeMismatch)).To(BeTrue())
			})

			It("refuses to read an OK as data", func() {
				resp, err := protocol.ParseResponse([]byte("OK"))
				Expect(err).To(Succeed())

				_, err = resp.AsData()
				Expect(errors.Is(err, protocol.ErrResponseTypeMismatch)).To(BeTrue())
			})
		})

		Describe("ErrorOrNil()", func() {
			It("returns nil for anything that is not an ERR", func() {
				resp, err := protocol.ParseResponse([]byte("OK"))
				Expect(err).To(Succeed())
				Expect(resp.ErrorOrNil()).To(Succeed())
			})

			It("returns an AgentError carrying the code for an ERR", func() {
				resp, err := protocol.ParseResponse([]byte("ERR 67109139 Unknown IPC method"))
				Expect(err).To(Succeed())

				agentErr := new(protocol.AgentError)
				Expect(errors.As(resp.ErrorOrNil(), &agentErr)).To(BeTrue())
				Expect(agentErr.Code).To(Equal(67109139))
				Expect(agentErr.Description).To(Equal("Unknown IPC method"))
			})
		})

		It("keeps the raw line around", func() {
			resp, err := protocol.ParseResponse([]byte("OK Pleased to meet you"))
			Expect(err).To(Succeed())
			Expect(resp.Raw()).To(Equal([]byte("OK Pleased to meet you")))
		})
	})
})
