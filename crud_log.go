package vistable

import "time"

// CRUDLogSetter is the interface to set the crudlog.
type CRUDLogSetter interface {
	SetCreateTime(now time.Time)
	SetUpdateTime(now time.Time)
}

// CRUDLog is the struct to store crud related timestamps.
type CRUDLog struct {
	CreateTime time.Time `db:"create_time" json:"create_time"`
	UpdateTime time.Time `db:"update_time" json:"update_time"`
}

// SetCreateTime sets the created time.
func (l *CRUDLog) SetCreateTime(now time.Time) {
	l.CreateTime = now
}

// SetUpdateTime sets the updated time.
func (l *CRUDLog) SetUpdateTime(now time.Time) {
	l.UpdateTime = now
}
