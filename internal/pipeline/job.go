package pipeline

import (
	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/pagecrawler/internal/config"
	"github.com/nao1215/pagecrawler/internal/model"
)

// Job is the unit of work a Pipeline processes: one start URL.
type Job struct {
	// StartURL is the normalized seed of the crawl.
	StartURL string

	// Site is the site configuration merged for StartURL's host.
	Site config.SiteConfig

	// Report is set by CrawlStep.
	Report *model.CrawlReport

	// ReportDir is where ReportStep wrote the report files.
	ReportDir string

	// Artifacts lists files written by the steps.
	Artifacts []string

	// Skipped is set when CrawlStep decided not to crawl, for example
	// because the site was crawled recently.
	Skipped bool

	// SkipReason says why the job was skipped.
	SkipReason string

	// Steps lists the steps that ran, in order.
	Steps []string

	// Errors collects step failures.
	Errors []error
}

// NewJob returns a job for startURL.
func NewJob(startURL string, site config.SiteConfig) *Job {
	return &Job{StartURL: startURL, Site: site}
}

// Err combines every step error, or returns nil when there was none.
func (j *Job) Err() error {
	var result *multierror.Error
	for _, err := range j.Errors {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Failed reports whether any step failed.
func (j *Job) Failed() bool {
	return len(j.Errors) > 0
}
