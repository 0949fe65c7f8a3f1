// Package model はドメインモデルを定義する。
package model

import "time"

// Handle は表示対象として追跡するTwitterアカウントを表す。
type Handle struct {
	ID        string
	Handle    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
