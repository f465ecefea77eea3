package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/talenthub/pkg/errors"
)

// Domain errors surfaced to API callers.
var (
	ErrValidation = apperrors.ErrValidation

	ErrDuplicateApplication = apperrors.New("APPLICATION_DUPLICATE", "You already applied to this job", http.StatusBadRequest)

	ErrJobNotFound          = apperrors.New("JOB_NOT_FOUND", "Job not found", http.StatusNotFound)
	ErrApplicationNotFound  = apperrors.New("APPLICATION_NOT_FOUND", "Application not found", http.StatusNotFound)
	ErrNotificationNotFound = apperrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
	ErrSavedJobNotFound     = apperrors.New("SAVED_JOB_NOT_FOUND", "Saved job not found", http.StatusNotFound)

	// ErrForbidden never says which ownership check failed.
	ErrForbidden = apperrors.ErrForbidden

	ErrInvalidStatus     = apperrors.NewValidation("Invalid application status")
	ErrInvalidTransition = apperrors.New("INVALID_TRANSITION", "Status transition is not allowed", http.StatusBadRequest)
	ErrJobAlreadySaved   = apperrors.New("JOB_ALREADY_SAVED", "Job already saved", http.StatusBadRequest)
)

// Side-effect errors. They are logged by the dispatcher and never returned to
// the caller of the operation that triggered the notification.
var (
	ErrInvalidRecipient = errors.New("invalid notification recipient")
	ErrDeliveryFailure  = errors.New("live delivery failed")
)

// isForeignKeyError detects foreign key violations across vendors.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23503" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && (myErr.Number == 1452 || myErr.Number == 1216) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate entry") ||
		strings.Contains(lower, "duplicate key")
}
