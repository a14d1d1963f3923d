package controllers

import (
	"campuscert/certerr"
	"campuscert/chain"
	"campuscert/config"
	"campuscert/database"
	"campuscert/issuance"
	"campuscert/middleware"
	"campuscert/models"
	"campuscert/utils"
	validators "campuscert/validators/certificate"
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issuer runs the issuance pipeline. *issuance.Orchestrator satisfies it.
type Issuer interface {
	Issue(ctx context.Context, req issuance.Request) (issuance.Result, error)
}

var (
	pipeline Issuer
	checker  utils.TransactionChecker
)

// Setup injects the pipeline and the transaction checker used by the handlers.
func Setup(p Issuer, tc utils.TransactionChecker) {
	pipeline = p
	checker = tc
}

// IssueCertificate runs the issuance pipeline for a completed course and
// records the outcome for the caller.
func IssueCertificate(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	reqData, ok := c.Locals("validatedIssue").(*validators.IssueRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request!", nil)
	}

	req := issuance.Request{
		CourseID:      reqData.CourseID,
		CourseTitle:   reqData.CourseTitle,
		StudentName:   firstNonEmpty(reqData.StudentName, user.Name),
		StudentEmail:  firstNonEmpty(reqData.StudentEmail, user.Email),
		WalletAddress: firstNonEmpty(reqData.WalletAddress, user.WalletAddress),
	}
	if !chain.IsAddress(req.WalletAddress) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A wallet address is required to receive the certificate!", nil)
	}

	var existing models.CertificateIssuance
	err := database.Database.Db.
		Where("user_id = ? AND course_id = ? AND status IN ? AND is_deleted = ?",
			userID, req.CourseID, []string{models.IssuanceStatusConfirmed, models.IssuanceStatusPending}, false).
		Order("created_at desc").
		First(&existing).Error
	if err == nil {
		msg := "Certificate already issued!"
		if existing.Status == models.IssuanceStatusPending {
			msg = "Certificate issuance already pending confirmation!"
		}
		return middleware.JsonResponse(c, fiber.StatusConflict, false, msg, issuanceView(existing))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check existing certificates!", nil)
	}

	if pipeline == nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Certificate issuance is not configured!", nil)
	}

	res, issueErr := pipeline.Issue(c.UserContext(), req)
	resp := issuance.Respond(res, issueErr)

	row := models.CertificateIssuance{
		AttemptID:      uuid.NewString(),
		UserID:         userID,
		CourseID:       uint(req.CourseID),
		CourseTitle:    req.CourseTitle,
		StudentName:    req.StudentName,
		StudentEmail:   req.StudentEmail,
		WalletAddress:  req.WalletAddress,
		CertificateID:  res.CertificateID,
		CertificateURI: res.CertificateURI,
		MetadataURI:    res.MetadataURI,
		TxHash:         res.TransactionID,
		GenericImage:   res.UsedGenericImage,
	}
	if res.MetadataURI != "" {
		if raw, err := json.Marshal(res.Metadata); err == nil {
			row.Metadata = raw
		}
	}

	kind := certerr.KindOf(issueErr)
	switch {
	case issueErr == nil:
		now := time.Now()
		row.Status = models.IssuanceStatusConfirmed
		row.CompletedAt = &now
	case kind == certerr.TransactionTimeout && res.TransactionID != "":
		row.Status = models.IssuanceStatusPending
		row.ErrorKind = string(kind)
	default:
		row.Status = models.IssuanceStatusFailed
		row.ErrorKind = string(kind)
	}

	if err := database.Database.Db.Create(&row).Error; err != nil {
		// The chain outcome stands even if the ledger write fails.
		log.Printf("[CERTIFICATE] Failed to record issuance for user %d course %d (tx %s): %v",
			userID, req.CourseID, row.TxHash, err)
	}

	data := fiber.Map{
		"success":       resp.Success,
		"transactionId": resp.TransactionID,
		"error":         resp.Error,
		"kind":          resp.Kind,
		"status":        row.Status,
	}
	if resp.TransactionID != "" {
		data["explorerUrl"] = chain.ExplorerTxURL(config.AppConfig.ExplorerTxURL, resp.TransactionID)
	}

	if issueErr != nil {
		return middleware.JsonResponse(c, statusFor(kind), false, resp.Error, data)
	}

	utils.SendCertificateIssuedEmail(req.StudentEmail, req.StudentName, req.CourseTitle,
		res.CertificateID, chain.ExplorerTxURL(config.AppConfig.ExplorerTxURL, res.TransactionID))

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Certificate issued successfully!", data)
}

// GetUserCertificates lists the caller's issuances, newest first.
func GetUserCertificates(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	page, _ := c.Locals("page").(int)
	limit, _ := c.Locals("limit").(int)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	db := database.Database.Db.Model(&models.CertificateIssuance{}).
		Where("user_id = ? AND is_deleted = ?", userID, false)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
	}

	var rows []models.CertificateIssuance
	if err := db.Offset(offset).Limit(limit).Order("created_at desc").Find(&rows).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
	}

	certificates := make([]fiber.Map, len(rows))
	for i, row := range rows {
		certificates[i] = issuanceView(row)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", fiber.Map{
		"certificates": certificates,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// GetExplorerLink builds the block-explorer URL for a transaction id.
func GetExplorerLink(c *fiber.Ctx) error {
	tx, _ := c.Locals("txHash").(string)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Explorer link generated!", fiber.Map{
		"transactionId": tx,
		"explorerUrl":   chain.ExplorerTxURL(config.AppConfig.ExplorerTxURL, tx),
	})
}

// ReconcilePending resolves pending issuances now instead of waiting for the scheduler.
func ReconcilePending(c *fiber.Ctx) error {
	if checker == nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Reconciliation is not configured!", nil)
	}
	summary, err := utils.ReconcilePendingIssuances(c.UserContext(), checker)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to reconcile pending certificates!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Reconciliation completed!", summary)
}

func issuanceView(row models.CertificateIssuance) fiber.Map {
	view := fiber.Map{
		"id":              row.ID,
		"course_id":       row.CourseID,
		"course_title":    row.CourseTitle,
		"certificate_id":  row.CertificateID,
		"certificate_uri": row.CertificateURI,
		"metadata_uri":    row.MetadataURI,
		"tx_hash":         row.TxHash,
		"status":          row.Status,
		"error_kind":      row.ErrorKind,
		"generic_image":   row.GenericImage,
		"completed_at":    row.CompletedAt,
		"created_at":      row.CreatedAt,
	}
	if row.TxHash != "" {
		view["explorer_url"] = chain.ExplorerTxURL(config.AppConfig.ExplorerTxURL, row.TxHash)
	}
	return view
}

// statusFor maps a failure kind to the HTTP status returned to the client.
func statusFor(kind certerr.Kind) int {
	switch kind {
	case certerr.InvalidRequest:
		return fiber.StatusBadRequest
	case certerr.StoreRejected, certerr.StoreUnreachable, certerr.ChainUnreachable:
		return fiber.StatusBadGateway
	case certerr.WalletUnavailable:
		return fiber.StatusConflict
	case certerr.TransactionRejected:
		return fiber.StatusUnprocessableEntity
	case certerr.TransactionTimeout:
		return fiber.StatusAccepted
	default:
		return fiber.StatusInternalServerError
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
