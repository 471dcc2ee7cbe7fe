package models

// ProposalStatus статус предложения в жизненном цикле отправки клиенту.
type ProposalStatus string

// Статусы предложений
const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusSent     ProposalStatus = "sent"
	ProposalStatusViewed   ProposalStatus = "viewed"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusDeclined ProposalStatus = "declined"
)

// PDFContentType MIME тип всех документов в хранилище.
const PDFContentType = "application/pdf"

// Значения отступа для записей названий страниц.
const (
	IndentNone   = 0
	IndentNested = 1
)
