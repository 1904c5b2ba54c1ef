package ipc

import "time"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// AccountView is the wire representation of the signed-in account.
type AccountView struct {
	Identity           string     `json:"identity"`
	Email              string     `json:"email"`
	Credits            int64      `json:"credits"`
	SubscriptionActive bool       `json:"subscription_active"`
	NextRewardAt       *time.Time `json:"next_reward_at,omitempty"`
}

// JobView is the wire representation of an in-flight generation job.
type JobView struct {
	JobID           string    `json:"job_id"`
	Prompt          string    `json:"prompt"`
	AspectRatio     string    `json:"aspect_ratio"`
	DurationSeconds int       `json:"duration_seconds"`
	ReservedCredits int64     `json:"reserved_credits"`
	StartedAt       time.Time `json:"started_at"`
	ElapsedSeconds  int64     `json:"elapsed_seconds"`
}

// ResultView is the wire representation of the last resolved outcome.
type ResultView struct {
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// VideoView is the wire representation of a generation history record.
type VideoView struct {
	Prompt          string    `json:"prompt"`
	AspectRatio     string    `json:"aspect_ratio"`
	DurationSeconds int       `json:"duration_seconds"`
	VideoURL        string    `json:"video_url"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProductView is the wire representation of a storefront product.
type ProductView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Kind        string `json:"kind"`
	Credits     int64  `json:"credits,omitempty"`
}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	StartedAt    time.Time    `json:"started_at"`
	DatabasePath string       `json:"database_path"`
	LockPath     string       `json:"lock_path"`
	LogPath      string       `json:"log_path"`
	SignedIn     bool         `json:"signed_in"`
	Account      *AccountView `json:"account,omitempty"`
	JobState     string       `json:"job_state"`
	Job          *JobView     `json:"job,omitempty"`
	LastResult   *ResultView  `json:"last_result,omitempty"`
}

// SignInRequest establishes the daemon session for an identity.
type SignInRequest struct {
	Identity string `json:"identity"`
	Email    string `json:"email"`
}

// SignInResponse carries the signed-in account snapshot.
type SignInResponse struct {
	Account AccountView `json:"account"`
}

// SignOutRequest ends the daemon session.
type SignOutRequest struct{}

// SignOutResponse indicates sign-out result.
type SignOutResponse struct {
	SignedOut bool `json:"signed_out"`
}

// DeleteAccountRequest removes all persisted state for the signed-in identity.
type DeleteAccountRequest struct{}

// DeleteAccountResponse indicates deletion result.
type DeleteAccountResponse struct {
	Deleted bool `json:"deleted"`
}

// AccountRequest fetches the signed-in account snapshot.
type AccountRequest struct{}

// AccountResponse carries the account snapshot when a session exists.
type AccountResponse struct {
	SignedIn bool         `json:"signed_in"`
	Account  *AccountView `json:"account,omitempty"`
}

// SubmitRequest starts a new generation job.
type SubmitRequest struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	DurationSeconds int    `json:"duration_seconds"`
	ImageBase64     string `json:"image_base64,omitempty"`
}

// SubmitResponse reports the accepted job.
type SubmitResponse struct {
	JobID string   `json:"job_id"`
	Job   *JobView `json:"job,omitempty"`
}

// JobStatusRequest fetches the generation snapshot.
type JobStatusRequest struct{}

// JobStatusResponse carries the generation snapshot.
type JobStatusResponse struct {
	State      string      `json:"state"`
	Job        *JobView    `json:"job,omitempty"`
	LastResult *ResultView `json:"last_result,omitempty"`
}

// HistoryRequest fetches resolved videos for this daemon session.
type HistoryRequest struct{}

// HistoryResponse lists resolved videos, most recent first.
type HistoryResponse struct {
	Videos []VideoView `json:"videos"`
}

// CatalogRequest fetches the storefront catalog.
type CatalogRequest struct{}

// CatalogResponse lists purchasable products.
type CatalogResponse struct {
	Products []ProductView `json:"products"`
}

// PurchaseRequest buys a product by id.
type PurchaseRequest struct {
	ProductID string `json:"product_id"`
}

// PurchaseResponse reports the purchase outcome and the post-purchase account.
type PurchaseResponse struct {
	Outcome string       `json:"outcome"`
	Message string       `json:"message,omitempty"`
	Account *AccountView `json:"account,omitempty"`
}

// SyncRequest reconciles entitlements and checks for due rewards.
type SyncRequest struct{}

// SyncResponse carries the post-sync account snapshot.
type SyncResponse struct {
	Account *AccountView `json:"account,omitempty"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
