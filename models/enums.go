package models

type BatchStatus string

const (
	BatchStatusPending      BatchStatus = "pending"
	BatchStatusProcessing   BatchStatus = "processing"
	BatchStatusCompleted    BatchStatus = "completed"
	BatchStatusQcFailed     BatchStatus = "qc_failed"
	BatchStatusReprocessing BatchStatus = "reprocessing"
	BatchStatusCancelled    BatchStatus = "cancelled"
)

type QcStatus string

const (
	QcStatusPending QcStatus = "pending"
	QcStatusPassed  QcStatus = "passed"
	QcStatusFailed  QcStatus = "failed"
)

type TransactionType string

const (
	TransactionTypeProductionInput  TransactionType = "production_input"
	TransactionTypeProductionOutput TransactionType = "production_output"
	TransactionTypeReversal         TransactionType = "reversal"
	TransactionTypeAudit            TransactionType = "audit"
)

type WorkOrderStatus string

const (
	WorkOrderStatusPlanned    WorkOrderStatus = "planned"
	WorkOrderStatusReleased   WorkOrderStatus = "released"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusClosed     WorkOrderStatus = "closed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// Remote push lifecycle, PENDING -> PROCESSING -> SUCCEEDED | FAILED -> DEAD.
// FAILED rows are retried with backoff; DEAD rows only move again via the ops
// replay endpoint.
const (
	RemotePushStatusPending    = "PENDING"
	RemotePushStatusProcessing = "PROCESSING"
	RemotePushStatusSucceeded  = "SUCCEEDED"
	RemotePushStatusFailed     = "FAILED"
	RemotePushStatusDead       = "DEAD"
)
