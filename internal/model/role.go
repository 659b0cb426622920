package model

import "fmt"

// Role はユーザーの権限を表す閉じた列挙型。ゼロ値は無効。
type Role int

const (
	// RoleCustomer はケーキを購入する顧客。サインアップ時の既定値。
	RoleCustomer Role = iota + 1
	// RoleSeller は店舗とケーキを管理する販売者。
	RoleSeller
)

// String はストアとトークンで使う文字列表現を返す。
func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "CUSTOMER"
	case RoleSeller:
		return "SELLER"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSeller
}

// ParseRole は文字列をRoleに変換する。未知の文字列はエラーになる。
func ParseRole(s string) (Role, error) {
	switch s {
	case "CUSTOMER":
		return RoleCustomer, nil
	case "SELLER":
		return RoleSeller, nil
	default:
		return 0, fmt.Errorf("unknown role: %q", s)
	}
}

// Principal はリクエストに紐付く認証主体。
type Principal struct {
	Email string
	Role  Role
}
