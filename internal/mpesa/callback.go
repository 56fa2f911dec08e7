package mpesa

// Callback is the asynchronous STK push result Daraja posts to the
// callback URL. ResultCode 0 means the customer authorized the charge;
// any other code is a failure (cancelled, timed out, insufficient
// funds, ...).
type Callback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string            `json:"MerchantRequestID"`
			CheckoutRequestID string            `json:"CheckoutRequestID"`
			ResultCode        int               `json:"ResultCode"`
			ResultDesc        string            `json:"ResultDesc"`
			CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

func (cb *Callback) Success() bool {
	return cb.Body.StkCallback.ResultCode == 0
}
