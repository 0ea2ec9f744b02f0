// backend/models/api_models.go
package models

// OAuthCodeRequest is the body of POST /api/oauth/code.
type OAuthCodeRequest struct {
	UNI string `json:"uni"`
}

// OAuthCodeResponse carries the stable code issued for a uni.
type OAuthCodeResponse struct {
	UNI  string `json:"uni"`
	Code string `json:"code"`
}
