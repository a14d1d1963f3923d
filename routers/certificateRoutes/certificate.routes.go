package certificateRoutes

import (
	controllers "campuscert/controllers/certificate"
	"campuscert/middleware"
	validators "campuscert/validators/certificate"

	"github.com/gofiber/fiber/v2"
)

// SetupCertificateRoutes sets up the certificate issuance routes
func SetupCertificateRoutes(app *fiber.App) {
	certGroup := app.Group("/certificate")

	// Issuance for a completed course
	certGroup.Post("/issue", middleware.JWTMiddleware, validators.IssueCertificate(), controllers.IssueCertificate)

	// The caller's certificates
	certGroup.Get("/list", middleware.JWTMiddleware, validators.CertificateList(), controllers.GetUserCertificates)

	// Block-explorer link for a transaction id
	certGroup.Get("/explorer/:tx", validators.ExplorerLink(), controllers.GetExplorerLink)

	// Admin: resolve pending transactions now
	certGroup.Post("/admin/reconcile", middleware.JWTMiddleware, middleware.RequireRole("ADMIN"), controllers.ReconcilePending)
}
