// Package credential はパスワードのハッシュ化と照合を提供する。
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Encoder はbcryptによるパスワードエンコーダー。
// 平文パスワードのハッシュ化と、保存済みハッシュとの照合を行う。
type Encoder struct {
	cost int
}

// NewEncoder はEncoderを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使用する。
func NewEncoder(cost int) *Encoder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Encoder{cost: cost}
}

// Hash は平文パスワードをbcryptハッシュに変換する。
func (e *Encoder) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), e.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Matches は平文パスワードが保存済みハッシュと一致するかを返す。
// ハッシュが不正な形式の場合も不一致として扱う。
func (e *Encoder) Matches(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
