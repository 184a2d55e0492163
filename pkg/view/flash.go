package view

type FlashKind string

const (
	FlashInfo    FlashKind = "info"
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash is a short user-facing notice, shown by clients as a toast.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}
