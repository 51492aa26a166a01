// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めないこと。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Location     string
	Occupation   string
	PicturePath  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName は通知文面などに使う表示名を返す。
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Friend は友達一覧に表示するユーザー情報を表す。
type Friend struct {
	ID          string
	FirstName   string
	LastName    string
	Occupation  string
	Location    string
	PicturePath string
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
