package request

// AttachTransactionRequest 绑定链上交易
type AttachTransactionRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
	Hash    string `json:"hash"` // format checked by the service
}

// OwnerRequest identifies the caller for cancel and refund
type OwnerRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
}

// StatusQuery 查询状态
type StatusQuery struct {
	OwnerID string `form:"owner_id" binding:"required,uuid"`
}
