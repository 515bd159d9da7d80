package dto

type ConnectorResponse struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	RequiredFields []string `json:"required_fields,omitempty"`
}
