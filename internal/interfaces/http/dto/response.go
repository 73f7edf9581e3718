package dto

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo carries error details, including the request ID for support
// correlation.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Meta carries paging state. The upstream paginates with a has-more flag
// rather than totals, so that is what the API exposes.
type Meta struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

// NewSuccessResponse creates a success envelope.
func NewSuccessResponse(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta creates a success envelope with paging meta.
func NewSuccessResponseWithMeta(data interface{}, page, perPage int, hasMore bool) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Page: page, PerPage: perPage, HasMore: hasMore},
	}
}

// NewErrorResponse creates an error envelope.
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	}
}

// NewErrorResponseWithRequestID creates an error envelope tagged with the
// request ID.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, RequestID: requestID},
	}
}

// ListRequest holds the common list/pagination query parameters for document
// listings.
type ListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=200"`
	Status     string `form:"status"`
	SortColumn string `form:"sort_column"`
}
