package amqp

import (
	"encoding/json"
	"time"
)

// Message types carried in the AMQP Type property.
const (
	TypeBillExport = "bill.export"
	TypeBillShared = "bill.shared"
)

// BillExportMessage asks the worker to write one month of bills to the spreadsheet.
// Bills are recomputed by the worker; only the period travels.
type BillExportMessage struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	RequestedBy string    `json:"requested_by"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBillExportMessage(year, month int, requestedBy string) *BillExportMessage {
	return &BillExportMessage{
		Year:        year,
		Month:       month,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// BillSharedMessage records that a bill was sent to a customer.
type BillSharedMessage struct {
	CustomerID string    `json:"customer_id"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	Channel    string    `json:"channel"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBillSharedMessage(customerID string, year, month int, channel string) *BillSharedMessage {
	return &BillSharedMessage{
		CustomerID: customerID,
		Year:       year,
		Month:      month,
		Channel:    channel,
		Timestamp:  time.Now(),
	}
}

func (m *BillExportMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func (m *BillSharedMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func BillExportMessageFromJSON(data []byte) (*BillExportMessage, error) {
	var msg BillExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func BillSharedMessageFromJSON(data []byte) (*BillSharedMessage, error) {
	var msg BillSharedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
