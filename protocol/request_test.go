package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/aswan/protocol"
)

var _ = Describe("Requests", func() {
	Describe("EncodeCommand()", func() {
		It("encodes a bare command", func() {
			req, err := protocol.EncodeCommand(protocol.NOP, "")
			Expect(err).To(Succeed())
			Expect(req.String()).To(Equal("NOP"))
		})

		It("separates the command and parameters with a single space", func() {
			req, err := protocol.EncodeCommand(protocol.GETINFO, "version")
			Expect(err).To(Succeed())
			Expect(req.String()).To(Equal("GETINFO version"))
		})

		It("sends parameters verbatim, without escaping", func() {
			req, err := protocol.EncodeCommand(protocol.OPTION, "display=:0")
			Expect(err).To(Succeed())
			Expect(req.String()).To(Equal("OPTION display=:0"))
		})

		It("rejects a line feed in the command", func() {
			_, err := protocol.EncodeCommand("NOP\nBYE", "")
			Expect(errors.Is(err, protocol.ErrRequestContainsLineFeed)).To(BeTrue())
		})

		It("rejects a line feed in the parameters", func() {
			_, err := protocol.EncodeCommand(protocol.OPTION, "a\nb")
			Expect(errors.Is(err, protocol.ErrRequestContainsLineFeed)).To(BeTrue())
		})
	})

	Describe("EncodeData()", func() {
		It("prefixes the escaped payload with 'D '", func() {
			Expect(protocol.EncodeData([]byte("hello")).String()).To(Equal("D hello"))
		})

		It("stays on one line no matter the payload", func() {
			req := protocol.EncodeData([]byte{0x00, 0x0a, 0x25})
			Expect(req.String()).To(Equal("D %00%0A%25"))
		})

		It("encodes an empty payload as the bare prefix", func() {
			Expect(protocol.EncodeData(nil).String()).To(Equal("D "))
		})
	})

	Describe("RawRequest()", func() {
		It("adopts an already formed line", func() {
			req, err := protocol.RawRequest([]byte("SIGKEY ABCD"))
			Expect(err).To(Succeed())
			Expect(req.String()).To(Equal("SIGKEY ABCD"))
		})

		It("copies the line rather than aliasing it", func() {
			line := []byte("NOP")

			req, err := protocol.RawRequest(line)
			Expect(err).To(Succeed())

			line[0] = 'X'
			Expect(req.String()).To(Equal("NOP"))
		})

		It("rejects a line containing the terminator", func() {
			_, err := protocol.RawRequest([]byte("NOP\nBYE"))
			Expect(errors.Is(err, protocol.ErrRequestContainsLineFeed)).To(BeTrue())
		})
	})
})
