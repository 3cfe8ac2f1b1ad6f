package controllers

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These tests use Ginkgo (BDD-style Go testing framework), the teacher's
// convention for controller specs. No envtest.Environment is started:
// there is no real apiserver binary for this system, so specs drive the
// in-memory resources.View/controllers.Step pair directly instead of a
// real client.
func TestControllers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controllers Suite")
}
