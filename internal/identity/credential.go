package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential はサービスアカウントが設定されていないことを表す設定エラー。
	ErrMissingCredential = errors.New("GOOGLE_SERVICE_ACCOUNT環境変数が設定されていません")
	// ErrInvalidCredential はサービスアカウントの形式が不正であることを表す設定エラー。
	ErrInvalidCredential = errors.New("サービスアカウントの形式が不正です")
)

// serviceAccountType はサービスアカウントJSONのtypeフィールドの期待値。
const serviceAccountType = "service_account"

// ServiceAccount はGoogleサービスアカウントの資格情報。
type ServiceAccount struct {
	// Type は資格情報の種類。"service_account" でなければならない。
	Type string `json:"type"`
	// ProjectID はFirebaseプロジェクトID。IDトークンのaudienceとして使用する。
	ProjectID string `json:"project_id"`
	// PrivateKeyID は秘密鍵の識別子。
	PrivateKeyID string `json:"private_key_id"`
	// PrivateKey はPEM形式のRSA秘密鍵。
	PrivateKey string `json:"private_key"`
	// ClientEmail はサービスアカウントのメールアドレス。
	ClientEmail string `json:"client_email"`
	// ClientID はサービスアカウントのクライアントID。
	ClientID string `json:"client_id"`
	// TokenURI はOAuth2トークンエンドポイント。
	TokenURI string `json:"token_uri"`
}

// DecodeServiceAccount はbase64エンコードされたサービスアカウントJSONをデコードして検証する。
// 値が空の場合はErrMissingCredential、形式が不正な場合はErrInvalidCredentialを返す。
func DecodeServiceAccount(blob string) (ServiceAccount, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return ServiceAccount{}, ErrMissingCredential
	}

	raw, err := decodeBase64(blob)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: base64のデコードに失敗: %v", ErrInvalidCredential, err)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: JSONのパースに失敗: %v", ErrInvalidCredential, err)
	}
	if err := sa.validate(); err != nil {
		return ServiceAccount{}, err
	}
	return sa, nil
}

// validate はサービスアカウントの必須フィールドと秘密鍵を検証する。
func (sa ServiceAccount) validate() error {
	if sa.Type != serviceAccountType {
		return fmt.Errorf("%w: type = %q", ErrInvalidCredential, sa.Type)
	}
	if sa.ProjectID == "" {
		return fmt.Errorf("%w: project_idがありません", ErrInvalidCredential)
	}
	if sa.ClientEmail == "" {
		return fmt.Errorf("%w: client_emailがありません", ErrInvalidCredential)
	}
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey)); err != nil {
		return fmt.Errorf("%w: private_keyの解析に失敗: %v", ErrInvalidCredential, err)
	}
	return nil
}

// decodeBase64 は標準形式・URL形式のどちらのbase64でもデコードする。パディングの有無は問わない。
func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
