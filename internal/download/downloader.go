// Package download streams signed packages to disk. Downloads are ranged and
// resumable: an existing partial file's length is trusted as the offset to
// continue from.
package download

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/blacktop/ipafetch/internal/httpclient"
)

// Download is a downloader object
type Download struct {
	URL      string
	DestName string
	Headers  map[string]string

	// Client carries the authenticated session (cookies); NewDownload seeds a
	// plain one for unauthenticated transfers.
	Client *http.Client

	size         int64
	bytesResumed int64
	resume       bool
	progress     bool
}

// NewDownload creates a new downloader
func NewDownload(proxy string, insecure, progress bool) *Download {
	return &Download{
		progress: progress,
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:             httpclient.GetProxy(proxy),
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: insecure},
				ForceAttemptHTTP2: true,
			},
		},
	}
}

func (d *Download) getHEAD() error {
	req, err := http.NewRequest("HEAD", d.URL, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create http request")
	}
	req.Header.Add("User-Agent", httpclient.DefaultUserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return fmt.Errorf("content length is not set")
	}

	d.size = resp.ContentLength

	return nil
}

// Do will download a url to a local file. It's efficient because it will
// write as it downloads and not load the whole file into memory.
func (d *Download) Do() error {
	d.getHEAD() // size is only used for the progress bar

	req, err := http.NewRequest("GET", d.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create http GET request: %v", err)
	}
	req.Header.Add("User-Agent", httpclient.DefaultUserAgent)

	for k, v := range d.Headers {
		req.Header.Add(k, v)
	}

	if f, err := os.Stat(d.DestName); err == nil && f.Size() > 0 {
		d.resume = true
		d.bytesResumed = f.Size()
		rangeHeader := fmt.Sprintf("bytes=%d-", d.bytesResumed)
		log.WithField("range", rangeHeader).Debug("Resuming a previous download")
		req.Header.Add("Range", rangeHeader)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("server return status: %s", resp.Status)
	}

	// a server that ignores the Range header sends the whole file again
	if d.resume && resp.StatusCode == http.StatusOK {
		d.resume = false
		d.bytesResumed = 0
	}

	if dir := filepath.Dir(d.DestName); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "cannot create destination directory for %s", d.DestName)
		}
	}

	var dest *os.File
	if d.resume {
		dest, err = os.OpenFile(d.DestName, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open %s: %v", d.DestName, err)
		}
		dest.Seek(0, io.SeekEnd)
	} else {
		dest, err = os.Create(d.DestName)
		if err != nil {
			return fmt.Errorf("cannot open %s: %v", d.DestName, err)
		}
	}

	var p *mpb.Progress
	reader := io.Reader(resp.Body)

	if d.progress && d.size > 0 {
		p = mpb.New(
			mpb.WithWidth(60),
			mpb.WithRefreshRate(180*time.Millisecond),
		)

		bar := p.New(d.size,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|"),
			mpb.PrependDecorators(
				decor.CountersKibiByte("\t% .2f / % .2f"),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "✅ "),
				decor.Name(" ] "),
				decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncWidth),
			),
		)

		if d.resume {
			bar.IncrInt64(d.bytesResumed)
			bar.SetRefill(d.bytesResumed)
		}

		reader = bar.ProxyReader(resp.Body)
	}

	if _, err := io.Copy(dest, reader); err != nil {
		dest.Close()
		return fmt.Errorf("failed to copy body reader data: %v", err)
	}

	if p != nil {
		p.Wait()
	}

	dest.Sync()
	if err := dest.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %v", d.DestName, err)
	}

	return nil
}
