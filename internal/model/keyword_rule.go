package model

// KeywordRule maps a case-insensitive substring to an account code.
type KeywordRule struct {
	Keyword     string `json:"keyword" mapstructure:"keyword"`
	AccountCode string `json:"account_code" mapstructure:"account_code"`
}
