package utils

import (
	"campuscert/certerr"
	"campuscert/chain"
	"campuscert/config"
	"campuscert/database"
	"campuscert/metrics"
	"campuscert/models"
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// TransactionChecker is implemented by *chain.Submitter.
type TransactionChecker interface {
	CheckTransaction(ctx context.Context, txHash string) (chain.ReceiptStatus, error)
}

// ReconcileSummary counts what one reconciliation pass did.
type ReconcileSummary struct {
	Checked      int `json:"checked"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

const reconcileBatchSize = 100

// InitializeReconcileScheduler starts the job that resolves issuances whose
// confirmation wait was abandoned. Runs never overlap.
func InitializeReconcileScheduler(checker TransactionChecker, schedule string) (*cron.Cron, error) {
	log.Println("[RECONCILE-SCHEDULER] Initializing pending transaction reconciliation...")

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		summary, err := ReconcilePendingIssuances(ctx, checker)
		if err != nil {
			log.Printf("[RECONCILE-SCHEDULER] Error fetching pending issuances: %v", err)
			return
		}
		if summary.Checked > 0 {
			log.Printf("[RECONCILE-SCHEDULER] checked=%d confirmed=%d failed=%d pending=%d errors=%d",
				summary.Checked, summary.Confirmed, summary.Failed, summary.StillPending, summary.Errors)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("[RECONCILE-SCHEDULER] Reconciliation scheduler started - runs %s", schedule)
	return c, nil
}

// ReconcilePendingIssuances checks every PENDING issuance with a submitted
// transaction and marks it CONFIRMED or FAILED once the chain has decided.
func ReconcilePendingIssuances(ctx context.Context, checker TransactionChecker) (ReconcileSummary, error) {
	db := database.Database.Db
	var summary ReconcileSummary

	var pending []models.CertificateIssuance
	if err := db.WithContext(ctx).
		Where("status = ? AND tx_hash <> '' AND is_deleted = ?", models.IssuanceStatusPending, false).
		Order("created_at asc").
		Limit(reconcileBatchSize).
		Find(&pending).Error; err != nil {
		return summary, err
	}

	for _, row := range pending {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++

		status, err := checker.CheckTransaction(ctx, row.TxHash)
		if err != nil {
			log.Printf("[RECONCILE-SCHEDULER] Error checking tx %s for issuance %d: %v", row.TxHash, row.ID, err)
			summary.Errors++
			continue
		}

		updates := map[string]interface{}{}
		switch status {
		case chain.StatusConfirmed:
			now := time.Now()
			updates["status"] = models.IssuanceStatusConfirmed
			updates["error_kind"] = ""
			updates["completed_at"] = now
		case chain.StatusReverted:
			updates["status"] = models.IssuanceStatusFailed
			updates["error_kind"] = string(certerr.TransactionRejected)
		default:
			summary.StillPending++
			continue
		}

		if err := db.WithContext(ctx).Model(&models.CertificateIssuance{}).
			Where("id = ?", row.ID).
			Updates(updates).Error; err != nil {
			log.Printf("[RECONCILE-SCHEDULER] Error updating issuance %d: %v", row.ID, err)
			summary.Errors++
			continue
		}
		metrics.ReconciledTransactions.WithLabelValues(string(status)).Inc()

		if status == chain.StatusReverted {
			summary.Failed++
			continue
		}
		summary.Confirmed++
		SendCertificateIssuedEmail(row.StudentEmail, row.StudentName, row.CourseTitle,
			row.CertificateID, chain.ExplorerTxURL(explorerBase(), row.TxHash))
	}

	return summary, nil
}

func explorerBase() string {
	if config.AppConfig == nil {
		return ""
	}
	return config.AppConfig.ExplorerTxURL
}
