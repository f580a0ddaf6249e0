package errors_test

import (
	stderrors "errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

var _ = Describe("Error taxonomy", func() {
	Describe("HTTPStatus", func() {
		It("maps each kind to its documented status code", func() {
			Expect(taxerrors.KindClientMalformed.HTTPStatus()).To(Equal(400))
			Expect(taxerrors.KindNotFound.HTTPStatus()).To(Equal(404))
			Expect(taxerrors.KindConflict.HTTPStatus()).To(Equal(409))
			Expect(taxerrors.KindUnavailable.HTTPStatus()).To(Equal(503))
			Expect(taxerrors.KindInternal.HTTPStatus()).To(Equal(500))
		})
	})

	Describe("Wrap and KindOf", func() {
		It("preserves the kind through wrapping", func() {
			cause := stderrors.New("boom")
			err := taxerrors.Wrap(taxerrors.KindUnavailable, cause, "connecting to store")

			Expect(taxerrors.KindOf(err)).To(Equal(taxerrors.KindUnavailable))
			Expect(taxerrors.Is(err, taxerrors.KindUnavailable)).To(BeTrue())
			Expect(taxerrors.Is(err, taxerrors.KindConflict)).To(BeFalse())
		})

		It("reports KindInternal for an untagged error", func() {
			Expect(taxerrors.KindOf(stderrors.New("plain"))).To(Equal(taxerrors.KindInternal))
		})

		It("returns nil when wrapping nil", func() {
			Expect(taxerrors.Wrap(taxerrors.KindConflict, nil, "noop")).To(BeNil())
		})
	})
})
