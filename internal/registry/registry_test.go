package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/registry"
	"github.com/zhulik/livepoll/internal/storage"
	"github.com/zhulik/livepoll/testhelpers"
)

var _ = Describe("Registry", func() {
	var (
		injector *do.Injector
		reg      *registry.Registry
	)

	BeforeEach(func() {
		injector = testhelpers.NewInjector()
		storage.Register(injector)
		registry.Register(injector)

		reg = lo.Must(do.Invoke[*registry.Registry](injector))
	})

	AfterEach(func() {
		injector.Shutdown() //nolint:errcheck
	})

	Describe("Join", func() {
		It("creates a new identity bound to the connection", func(ctx SpecContext) {
			student := lo.Must(reg.Join(ctx, "Ada", "c1"))

			Expect(student.ID).NotTo(BeEmpty())
			Expect(student.Name).To(Equal("Ada"))
			Expect(student.ConnID).To(Equal("c1"))
		})

		It("treats a rejoin with the same name as a new identity", func(ctx SpecContext) {
			first := lo.Must(reg.Join(ctx, "Ada", "c1"))
			second := lo.Must(reg.Join(ctx, "Ada", "c2"))

			Expect(second.ID).NotTo(Equal(first.ID))
			Expect(lo.Must(reg.CountRegistered(ctx))).To(Equal(2))
		})

		Context("when the name is blank", func() {
			It("returns a validation error", func(ctx SpecContext) {
				_, err := reg.Join(ctx, "   ", "c1")

				Expect(err).To(MatchError(core.ErrValidation))
			})
		})
	})

	Describe("ClearConnection", func() {
		It("keeps the identity for reconnection", func(ctx SpecContext) {
			student := lo.Must(reg.Join(ctx, "Ada", "c1"))

			Expect(reg.ClearConnection(ctx, "c1")).To(Succeed())

			found := lo.Must(reg.Find(ctx, student.ID))
			Expect(found.Connected()).To(BeFalse())
			Expect(lo.Must(reg.CountRegistered(ctx))).To(Equal(1))
			Expect(lo.Must(reg.ListConnected(ctx))).To(BeEmpty())
		})

		It("does not fail for an unknown connection", func(ctx SpecContext) {
			Expect(reg.ClearConnection(ctx, "nope")).To(Succeed())
		})
	})

	Describe("Remove", func() {
		It("hard-deletes the student", func(ctx SpecContext) {
			student := lo.Must(reg.Join(ctx, "Ada", "c1"))

			Expect(reg.Remove(ctx, student.ID)).To(Succeed())

			_, err := reg.Find(ctx, student.ID)
			Expect(err).To(MatchError(core.ErrStudentNotFound))
			Expect(lo.Must(reg.CountRegistered(ctx))).To(Equal(0))
		})
	})

	Describe("ListConnected", func() {
		It("orders students by name and skips the disconnected", func(ctx SpecContext) {
			lo.Must(reg.Join(ctx, "Zoe", "c1"))
			lo.Must(reg.Join(ctx, "Ada", "c2"))
			lo.Must(reg.Join(ctx, "Ben", "c3"))
			lo.Must0(reg.ClearConnection(ctx, "c3"))

			students := lo.Must(reg.ListConnected(ctx))
			Expect(lo.Map(students, func(s core.Student, _ int) string { return s.Name })).To(Equal([]string{"Ada", "Zoe"}))
		})
	})
})
