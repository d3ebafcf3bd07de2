package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
)

// Lifecycle errors surfaced to API callers. Not-found errors also cover records the caller
// may not see, so existence is never leaked.
var (
	ErrMentorRoleRequired = apperrors.New("FORBIDDEN_MENTOR", "Only mentors can perform this action", http.StatusForbidden)
	ErrMenteeRoleRequired = apperrors.New("FORBIDDEN_MENTEE", "Only mentees can perform this action", http.StatusForbidden)

	ErrMentorNotFound     = apperrors.New("MENTOR_NOT_FOUND", "Mentor not found", http.StatusNotFound)
	ErrRequestNotFound    = apperrors.New("REQUEST_NOT_FOUND", "Request not found", http.StatusNotFound)
	ErrConnectionNotFound = apperrors.New("CONNECTION_NOT_FOUND", "Connection not found", http.StatusNotFound)

	ErrMentorNotAccepting = apperrors.New("MENTOR_NOT_ACCEPTING", "Mentor is not accepting requests", http.StatusUnprocessableEntity)
	ErrCapacityExceeded   = apperrors.New("LIMIT_REACHED", "Mentor has reached the maximum number of mentees", http.StatusUnprocessableEntity)

	ErrDuplicateRequest = apperrors.New("REQUEST_ALREADY_SENT", "A pending request to this mentor already exists", http.StatusConflict)
	ErrAlreadyProcessed = apperrors.New("REQUEST_ALREADY_PROCESSED", "Request has already been processed", http.StatusConflict)
	ErrNotActive        = apperrors.New("CONNECTION_NOT_ACTIVE", "Connection is not active", http.StatusConflict)
	ErrAlreadyCompleted = apperrors.New("ALREADY_COMPLETED", "Connection is already completed", http.StatusConflict)
	ErrAlreadyDetached  = apperrors.New("ALREADY_DETACHED", "Connection is already detached", http.StatusConflict)

	ErrInvalidMessage = apperrors.New("INVALID_MESSAGE", "Message must be between 10 and 2000 characters", http.StatusBadRequest)
	ErrInvalidReason  = apperrors.New("INVALID_REASON", "Reason must be at most 500 characters", http.StatusBadRequest)
)

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
		strings.Contains(lower, "duplicate")
}
