package types

// CodeEmail is the webhook payload shape for one-time code delivery.
// The same channel carries password-reset codes and doctor-visit codes;
// Channel distinguishes them on the receiving side.
type CodeEmail struct {
	Channel          string `json:"channel"`
	AppName          string `json:"appName"`
	ToEmail          string `json:"toEmail"`
	ResetCode        string `json:"resetCode"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	Subject          string `json:"subject"`
	MessageText      string `json:"messageText"`
}

// Delivery channels
const (
	ChannelVisitOTP      = "doctor-medical-record-otp"
	ChannelPasswordReset = "password-reset"
)
