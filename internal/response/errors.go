package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Competition-specific ──────────────────────────────────────────
	ErrSessionNotScheduled  ErrCode = "SESSION_NOT_SCHEDULED"
	ErrSessionNotActive     ErrCode = "SESSION_NOT_ACTIVE"
	ErrNotRegistered        ErrCode = "NOT_REGISTERED"
	ErrStartNotReady        ErrCode = "START_NOT_READY"
	ErrInvalidStationState  ErrCode = "INVALID_STATION_STATE"
	ErrStationNotActive     ErrCode = "STATION_NOT_ACTIVE"
	ErrEvaluationFailed     ErrCode = "EVALUATION_UNAVAILABLE"
	ErrPatientUnavailable   ErrCode = "PATIENT_UNAVAILABLE"
	ErrLeaderboardNotSealed ErrCode = "LEADERBOARD_NOT_SEALED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect credentials."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "The submitted data failed validation."
	case ErrInvalidID:
		return "The identifier in the request path is invalid."
	case ErrInvalidPayload:
		return "The request payload could not be parsed."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The request conflicts with the current state of the resource."
	case ErrDependencyExists:
		return "The resource is still referenced by other data and cannot be removed."

	// ─── Competition-specific ──────────────────────────────────────────
	case ErrSessionNotScheduled:
		return "This operation is only allowed while the session is scheduled."
	case ErrSessionNotActive:
		return "The competition session is not active."
	case ErrNotRegistered:
		return "You are not registered for this competition session."
	case ErrStartNotReady:
		return "The session cannot start until every participant has logged in."
	case ErrInvalidStationState:
		return "The station is not in a state that allows this operation."
	case ErrStationNotActive:
		return "There is no active station to act on."
	case ErrEvaluationFailed:
		return "The evaluation service is unavailable. Your station remains open; please try again."
	case ErrPatientUnavailable:
		return "The simulated patient is unavailable. Please try again."
	case ErrLeaderboardNotSealed:
		return "Standings are only available once the session has completed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	}
	return "An unknown error occurred."
}
