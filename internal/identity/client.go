package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/nao1215/journal/pkg/httpclient"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCertificateBaseURL はIDトークン署名用公開証明書の配布元。
	DefaultCertificateBaseURL = "https://www.googleapis.com"
	// certificatePath はsecuretokenの公開証明書一覧のパス。
	certificatePath = "/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
	// issuerPrefix はIDトークンのissuerの接頭辞。後ろにプロジェクトIDが続く。
	issuerPrefix = "https://securetoken.google.com/"
	// defaultCertificateTTL はCache-Controlが無い場合の証明書キャッシュ期間。
	defaultCertificateTTL = time.Hour
	// maxUIDLength はsubクレームの最大長。
	maxUIDLength = 128
	// clockSkew は時刻検証で許容するずれ。
	clockSkew = time.Minute
	certificateCacheKey = "securetoken"
)

var (
	// ErrInvalidToken はIDトークンの検証に失敗したことを表す。
	ErrInvalidToken = errors.New("IDトークンが無効です")
	// ErrCertificateUnavailable は公開証明書を取得できなかったことを表す。
	ErrCertificateUnavailable = errors.New("公開証明書を取得できません")
)

// Token は検証済みIDトークンのクレーム。
type Token struct {
	// UID はIDプロバイダー上のユーザーID（subクレーム）。
	UID string `json:"uid"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email,omitempty"`
	// EmailVerified はメールアドレスが確認済みかどうか。
	EmailVerified bool `json:"email_verified"`
	// Name は表示名。
	Name string `json:"name,omitempty"`
	// Picture はプロフィール画像のURL。
	Picture string `json:"picture,omitempty"`
	// Issuer はトークンの発行者。
	Issuer string `json:"iss"`
	// Audience はトークンの対象プロジェクトID。
	Audience string `json:"aud"`
	// IssuedAt は発行日時。
	IssuedAt time.Time `json:"iat"`
	// ExpiresAt は有効期限。
	ExpiresAt time.Time `json:"exp"`
}

// idTokenClaims はIDトークンのペイロード。
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Client はIDプロバイダーのIDトークンを検証するクライアント。
// 生成後は読み取り専用で、複数のリクエストから並行に利用できる。
type Client struct {
	// account はクライアントの生成に使用したサービスアカウント。
	account ServiceAccount
	// certs は公開証明書の取得元。
	certs *httpclient.Client
	// keys はkidごとの公開鍵のキャッシュ。
	keys *ttlcache.Cache[string, map[string]*rsa.PublicKey]
	// fetches はキャッシュ切れの間の証明書取得を1回にまとめる。
	fetches singleflight.Group
	// now は現在時刻を返す関数。
	now func() time.Time
}

// newClient はサービスアカウントからIDクライアントを生成する。
func newClient(sa ServiceAccount, certs *httpclient.Client, now func() time.Time) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{
		account: sa,
		certs:   certs,
		keys: ttlcache.New(
			ttlcache.WithTTL[string, map[string]*rsa.PublicKey](defaultCertificateTTL),
			ttlcache.WithDisableTouchOnHit[string, map[string]*rsa.PublicKey](),
		),
		now: now,
	}
}

// ProjectID はクライアントが対象とするプロジェクトIDを返す。
func (c *Client) ProjectID() string {
	return c.account.ProjectID
}

// VerifyIDToken はIDトークンの署名とクレームを検証し、検証済みのトークン情報を返す。
func (c *Client) VerifyIDToken(ctx context.Context, raw string) (*Token, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: トークンが空です", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(c.account.ProjectID),
		jwt.WithIssuer(issuerPrefix+c.account.ProjectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(c.now),
	)

	claims := &idTokenClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kidヘッダーがありません")
		}
		keys, err := c.publicKeys(ctx)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("kid %q に対応する公開鍵がありません", kid)
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, ErrCertificateUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subクレームが空です", ErrInvalidToken)
	}
	if len(claims.Subject) > maxUIDLength {
		return nil, fmt.Errorf("%w: subクレームが%d文字を超えています", ErrInvalidToken, maxUIDLength)
	}

	token := &Token{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Issuer:        claims.Issuer,
		Audience:      c.account.ProjectID,
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, nil
}

// publicKeys はキャッシュ済みの公開鍵を返す。期限切れの場合は証明書を再取得する。
// 並行に呼び出された場合も取得は1回だけ行い、その結果を共有する。
// 取得は呼び出し元のキャンセルから切り離し、httpclientのタイムアウトで打ち切る。
func (c *Client) publicKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	if item := c.keys.Get(certificateCacheKey); item != nil {
		return item.Value(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnavailable, err)
	}

	ch := c.fetches.DoChan(certificateCacheKey, func() (any, error) {
		// 待っている間に別の取得が完了している場合がある
		if item := c.keys.Get(certificateCacheKey); item != nil {
			return item.Value(), nil
		}
		return c.fetchPublicKeys(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil
	}
}

// fetchPublicKeys は公開証明書を取得して解析し、max-ageの間キャッシュする。
func (c *Client) fetchPublicKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	var pems map[string]string
	header, err := c.certs.GetJSON(ctx, certificatePath, &pems)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, pem := range pems {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("%w: kid %q の証明書の解析に失敗: %v", ErrCertificateUnavailable, kid, err)
		}
		keys[kid] = key
	}

	c.keys.Set(certificateCacheKey, keys, maxAge(header))
	return keys, nil
}

// maxAge はCache-Controlヘッダーのmax-ageを返す。指定が無い場合はデフォルト値を返す。
func maxAge(header http.Header) time.Duration {
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age=")
		if !ok {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			break
		}
		return time.Duration(seconds) * time.Second
	}
	return defaultCertificateTTL
}
