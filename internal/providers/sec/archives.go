package sec

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// ArchiveURL returns the quarterly bulk data set archive for a form family.
func (p *Provider) ArchiveURL(family models.FormFamily, quarter string) (string, error) {
	q, err := utils.ArchiveQuarter(quarter)
	if err != nil {
		return "", err
	}
	switch family {
	case models.Family13F:
		return fmt.Sprintf("%s/files/structureddata/data/form-13f-data-sets/%s_form13f.zip", p.baseURL, q), nil
	case models.FamilyInsider:
		return fmt.Sprintf("%s/files/structureddata/data/insider-transactions-data-sets/%s_form345.zip", p.baseURL, q), nil
	}
	return "", &utils.ValidationError{Field: "family", Value: string(family), Reason: "no bulk data set for this form family"}
}

// DownloadArchive streams the archive of family/quarter into dest and
// returns the bytes written.
func (p *Provider) DownloadArchive(ctx context.Context, family models.FormFamily, quarter, dest string) (int64, error) {
	u, err := p.ArchiveURL(family, quarter)
	if err != nil {
		return 0, err
	}
	body, err := p.open(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("sec archive %s %s: %w", family, quarter, err)
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("download %s: %w", u, err)
	}
	p.logger.Info("downloaded archive", zap.String("family", string(family)), zap.String("quarter", quarter), zap.Int64("bytes", n))
	return n, nil
}
