package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ytget/yt-link-bot/internal/model"
)

// DownloadRoute is the path prefix served by the web layer
const (
	DownloadRoute  = "/dls"
	TokenQueryName = "token"
)

// LocalPlacer keeps artifacts in the owner's working directory and links to
// the web layer with a signed token
type LocalPlacer struct {
	baseURL string
	signer  *LinkSigner
	ttl     time.Duration
}

// NewLocalPlacer creates a local placer; baseURL is the public origin of the web layer
func NewLocalPlacer(baseURL string, signer *LinkSigner, ttl time.Duration) *LocalPlacer {
	return &LocalPlacer{baseURL: baseURL, signer: signer, ttl: ttl}
}

// Place signs a link for an artifact that stays where it is
func (p *LocalPlacer) Place(ctx context.Context, ownerID int64, localPath string) (*Placement, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPlacementFailed, err)
	}

	fileName := filepath.Base(localPath)
	token, expiresAt, err := p.signer.Sign(ownerID, fileName, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPlacementFailed, err)
	}

	return &Placement{
		Location:  localPath,
		FileName:  fileName,
		URL:       p.LinkURL(ownerID, fileName, token),
		Size:      info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// LinkURL builds <base>/dls/<owner>/<file>?token=<token>
func (p *LocalPlacer) LinkURL(ownerID int64, fileName, token string) string {
	u := p.baseURL + DownloadRoute + "/" + strconv.FormatInt(ownerID, 10) + "/" + url.PathEscape(fileName)
	if token != "" {
		u += "?" + TokenQueryName + "=" + url.QueryEscape(token)
	}
	return u
}

// Remove deletes the local artifact
func (p *LocalPlacer) Remove(ctx context.Context, location string) error {
	return os.Remove(location)
}
