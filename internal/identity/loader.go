package identity

import (
	"sync"
	"time"

	"github.com/nao1215/journal/pkg/httpclient"
)

// Loader はIDクライアントをプロセスにつき一度だけ初期化して保持する。
// 初期化に成功した後のLoadは、資格情報を再デコードせずに登録済みのクライアントを返す。
type Loader struct {
	mu sync.Mutex
	// client は登録済みのIDクライアント。未初期化の場合nil。
	client *Client
	// certificateBaseURL は公開証明書の取得元。
	certificateBaseURL string
	// now はIDクライアントに渡す時刻関数。
	now func() time.Time
}

// NewLoader は新しいLoaderを生成する。
// certificateBaseURLが空の場合はDefaultCertificateBaseURLを使用する。
func NewLoader(certificateBaseURL string) *Loader {
	if certificateBaseURL == "" {
		certificateBaseURL = DefaultCertificateBaseURL
	}
	return &Loader{certificateBaseURL: certificateBaseURL, now: time.Now}
}

// Load はサービスアカウントからIDクライアントを生成して登録する。
// 既に登録済みの場合は何もせず登録済みのクライアントを返す。
// 失敗した場合は何も登録しない。
func (l *Loader) Load(blob string) (*Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	sa, err := DecodeServiceAccount(blob)
	if err != nil {
		return nil, err
	}

	l.client = newClient(sa, httpclient.New(l.certificateBaseURL, httpclient.DefaultTimeout), l.now)
	return l.client, nil
}
