package station

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/amrbekhit/stationboot"
)

// Fetcher downloads a new application image onto the volume.
type Fetcher interface {
	Fetch(ctx context.Context, v stationboot.Volume, name string) (int64, error)
}

// HTTPFetcher downloads the image from a fixed URL.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, v stationboot.Volume, name string) (int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodGet, f.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("download failed: %s", resp.Status)
	}

	w, err := v.Create(name)
	if err != nil {
		return 0, errors.Wrapf(err, "could not create %s", name)
	}
	n, err := io.Copy(w, resp.Body)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, errors.Wrapf(err, "could not write %s", name)
}

// Updater carries out the console's firmware update request: it stages the
// new image, writes the boot flag and resets into the bootloader.
type Updater struct {
	Volume    stationboot.Volume
	FlagFile  string
	ImageFile string
	Fetcher   Fetcher
	// Time allowed for the volume to settle before resetting.
	Delay time.Duration
	Reset func()

	sleep func(time.Duration)
}

// RequestUpdate triggers an update and resets the system. When a Fetcher is
// set the image is downloaded first and the flag is only written once the
// download is complete. A failed download removes the partial image and no
// reset happens.
func (u *Updater) RequestUpdate(ctx context.Context) error {
	if u.Fetcher != nil {
		// A flag left by an earlier request must not point at the image
		// while it is being replaced.
		if err := u.Volume.Remove(u.FlagFile); err != nil {
			return errors.Wrapf(err, "could not remove %s", u.FlagFile)
		}
		n, err := u.Fetcher.Fetch(ctx, u.Volume, u.ImageFile)
		if err != nil {
			if rerr := u.Volume.Remove(u.ImageFile); rerr != nil {
				log.Errorf("could not remove partial %s: %v", u.ImageFile, rerr)
			}
			return errors.Wrap(err, "image download failed")
		}
		log.Infof("downloaded %s (%d bytes)", u.ImageFile, n)
	}

	if err := stationboot.TriggerUpdate(u.Volume, u.FlagFile); err != nil {
		return err
	}
	log.Infof("%s added", u.FlagFile)

	sleep := u.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(u.Delay)

	log.Info("resetting for firmware update")
	if u.Reset != nil {
		u.Reset()
	}
	return nil
}
