package model

import (
	"database/sql/driver"
	"fmt"
)

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported enum value type: %T", value)
	}
}

// CHECK (status IN ('pending', 'verified', 'rejected'))
type DatasetStatus string

const (
	DatasetStatusPending  DatasetStatus = "pending"
	DatasetStatusVerified DatasetStatus = "verified"
	DatasetStatusRejected DatasetStatus = "rejected"
)

func (self *DatasetStatus) Scan(value interface{}) error {
	v, err := scanString(value)
	*self = DatasetStatus(v)
	return err
}

func (self DatasetStatus) Value() (driver.Value, error) {
	return string(self), nil
}

func (self DatasetStatus) IsTerminal() bool {
	return self == DatasetStatusVerified || self == DatasetStatusRejected
}

// CHECK (access_type IN ('open', 'paid', 'restricted'))
type AccessType string

const (
	AccessTypeOpen       AccessType = "open"
	AccessTypePaid       AccessType = "paid"
	AccessTypeRestricted AccessType = "restricted"
)

func (self *AccessType) Scan(value interface{}) error {
	v, err := scanString(value)
	*self = AccessType(v)
	return err
}

func (self AccessType) Value() (driver.Value, error) {
	return string(self), nil
}

func (self AccessType) IsValid() bool {
	switch self {
	case AccessTypeOpen, AccessTypePaid, AccessTypeRestricted:
		return true
	}
	return false
}

// CHECK (state IN ('PENDING', 'PROCESSING', 'DONE'))
type JobState string

const (
	JobStatePending    JobState = "PENDING"
	JobStateProcessing JobState = "PROCESSING"
	JobStateDone       JobState = "DONE"
)

func (self *JobState) Scan(value interface{}) error {
	v, err := scanString(value)
	*self = JobState(v)
	return err
}

func (self JobState) Value() (driver.Value, error) {
	return string(self), nil
}

type NotificationType string

const (
	NotificationTypeDataset NotificationType = "dataset"
	NotificationTypeReward  NotificationType = "reward"
)

func (self *NotificationType) Scan(value interface{}) error {
	v, err := scanString(value)
	*self = NotificationType(v)
	return err
}

func (self NotificationType) Value() (driver.Value, error) {
	return string(self), nil
}
