package journal_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/aswan/journal"
)

var _ = Describe("Journal", func() {
	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			j := journal.New()
			defer j.Close()

			Expect(func() { j.Close() }).NotTo(Panic())
			Expect(func() { j.Close() }).NotTo(Panic())
		})
	})

	It("an empty journal snapshots as {}", func() {
		j := journal.New()
		defer j.Close()

		Expect(string(j.Snapshot())).To(Equal(`{}`))
	})

	Describe("Record() / Query()", func() {
		It("can read back a path that was recorded", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Record("bridge.connections", 3)).To(Succeed())

			Expect(string(j.Query("bridge.connections"))).To(Equal("3"))
			Expect(string(j.Snapshot())).To(Equal(`{"bridge":{"connections":3}}`))
		})

		It("records nested paths without clobbering siblings", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Record("conns.1.lines", 10)).To(Succeed())
			Expect(j.Record("conns.1.lastError", "EOF")).To(Succeed())

			Expect(string(j.Query("conns.1.lines"))).To(Equal("10"))
			Expect(string(j.Query("conns.1.lastError"))).To(Equal(`"EOF"`))
		})

		It("returns nothing for a path that was never recorded", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Query("no.such.path")).To(BeEmpty())
		})
	})

	Describe("Incr()", func() {
		It("treats an absent value as zero", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Incr("bridge.lines", 1)).To(Succeed())
			Expect(string(j.Query("bridge.lines"))).To(Equal("1"))
		})

		It("accumulates across calls", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Incr("bridge.lines", 2)).To(Succeed())
			Expect(j.Incr("bridge.lines", 3)).To(Succeed())
			Expect(string(j.Query("bridge.lines"))).To(Equal("5"))
		})
	})

	Describe("Watch()", func() {
		It("sends on the watch channel when paths are recorded", func() {
			j := journal.New()
			defer j.Close()

			watchChan := j.Watch()
			Expect(j.Record("bridge.connections", 1)).To(Succeed())

			entry, ok := <-watchChan
			Expect(ok).To(BeTrue())
			Expect(entry).To(Equal(&journal.Entry{
				Path:  "bridge.connections",
				Value: []byte("1"),
			}))
		})

		It("never stalls a recorder behind a watcher that stopped draining", func() {
			j := journal.New()
			defer j.Close()

			watchChan := j.Watch()

			// Well past the channel's buffer, every Record must return
			for i := 0; i < 300; i++ {
				Expect(j.Record("bridge.lines", i)).To(Succeed())
			}

			Expect(string(j.Query("bridge.lines"))).To(Equal("299"))

			// The watcher still sees the oldest entries it had room for
			entry := <-watchChan
			Expect(entry.Path).To(Equal("bridge.lines"))
			Expect(string(entry.Value)).To(Equal("0"))
		})

		It("closes watch channels on Close", func() {
			j := journal.New()

			watchChan := j.Watch()
			Expect(j.Close()).To(Succeed())

			_, ok := <-watchChan
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Restore()", func() {
		It("replaces the whole document", func() {
			j := journal.New()
			defer j.Close()

			Expect(j.Restore([]byte(`{"bridge":{"connections":7}}`))).To(Succeed())
			Expect(string(j.Query("bridge.connections"))).To(Equal("7"))
		})
	})
})
