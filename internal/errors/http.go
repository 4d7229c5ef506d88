package errors

// HTTPStatusCode maps any error to its response status. Errors without an
// AppError in the chain are 500.
func HTTPStatusCode(err error) int {
	return GetCode(err).HTTPStatus()
}

// HTTPErrorResponse is the JSON body written for every failed request
type HTTPErrorResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// publicContextKeys are the context entries callers may see
var publicContextKeys = []string{"field", "resource", "status_code", "timeout", "feature"}

func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	var response HTTPErrorResponse
	response.RequestID = requestID
	response.Error.Code = GetCode(err)
	response.Error.Message = GetUserMessage(err)

	appErr, ok := As(err)
	if !ok {
		return response
	}

	public := make(map[string]interface{})
	for _, key := range publicContextKeys {
		if v, ok := appErr.Context[key]; ok {
			public[key] = v
		}
	}
	if len(public) > 0 {
		response.Error.Context = public
	}
	return response
}
