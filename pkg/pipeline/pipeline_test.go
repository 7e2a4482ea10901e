package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematics/pkg/analytics"
	"telematics/pkg/artifacts"
	"telematics/pkg/csvio"
	"telematics/pkg/generator"
	"telematics/pkg/logger"
	"telematics/service"
	"telematics/storage/memory"
)

type fakeS3 struct{ keys []string }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if _, err := io.Copy(io.Discard, in.Body); err != nil {
		return nil, err
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func newPipeline(t *testing.T, out io.Writer) *Pipeline {
	t.Helper()
	p := New(Options{
		DataDir:       t.TempDir(),
		Drivers:       120,
		Seed:          42,
		ForestWorkers: 2,
		Out:           out,
	}, logger.Nop())
	p.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	st := memory.New()
	svcs := service.NewWithOptions(st, logger.Nop(), service.AccountOptions{})
	fake := &fakeS3{}

	p := newPipeline(t, &out).
		WithServices(svcs).
		WithPublisher(artifacts.NewPublisher(fake, "bucket", "runs", logger.Nop()))
	require.NoError(t, p.Run(context.Background()))

	paths := p.Paths()
	for _, f := range paths.Outputs() {
		_, err := os.Stat(f)
		require.NoError(t, err, f)
	}
	for _, dir := range []string{paths.MLResults, paths.Samples} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	drivers, err := csvio.LoadFile(paths.Drivers, csvio.ReadDrivers)
	require.NoError(t, err)
	assert.Len(t, drivers, 120)

	enriched, err := csvio.LoadFile(paths.Risk, csvio.ReadRisk)
	require.NoError(t, err)
	require.Len(t, enriched, 120)
	for _, r := range enriched {
		assert.NotEmpty(t, r.RiskCategory)
	}

	quotes, err := csvio.LoadFile(paths.Premiums, csvio.ReadQuotes)
	require.NoError(t, err)
	assert.Len(t, quotes, 120)

	report, err := analytics.ReadReport(paths.Report)
	require.NoError(t, err)
	assert.Len(t, report.Models, len(analytics.ModelNames))
	assert.Equal(t, 120, report.Drivers)

	n, err := svcs.Record().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, n)
	summary, err := svcs.Premium().Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, summary.Total)

	require.Len(t, fake.keys, len(paths.Outputs()))
	for _, k := range fake.keys {
		assert.True(t, strings.HasPrefix(k, "runs/"), k)
	}

	text := out.String()
	assert.Contains(t, text, "Driving style distribution")
	assert.Contains(t, text, "Risk category summary")
	assert.Contains(t, text, "Silhouette score")
	assert.Contains(t, text, "Recommended insurance models")
}

func TestStagesRequireInputs(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	_, err := p.AnalyzeRisk(ctx)
	require.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), `run "generate" first`)
	assert.True(t, strings.HasPrefix(err.Error(), StageRisk+":"))

	_, err = p.Train(ctx)
	require.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), `run "risk" first`)

	_, err = p.Premiums(ctx)
	require.ErrorIs(t, err, ErrMissingInput)
}

func TestGenerateRejectsDriverCount(t *testing.T) {
	for _, n := range []int{-1, 0, generator.MaxDrivers + 1} {
		p := New(Options{DataDir: t.TempDir(), Drivers: n}, logger.Nop())
		_, err := p.Generate(context.Background())
		require.ErrorIs(t, err, generator.ErrDriverCount, "drivers=%d", n)
		_, statErr := os.Stat(p.Paths().Drivers)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestStagesStopOnCancelledContext(t *testing.T) {
	p := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(p.Paths().Drivers)
	assert.True(t, os.IsNotExist(statErr))

	_, err = p.Generate(context.Background())
	require.NoError(t, err)
	_, err = p.AnalyzeRisk(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, err = p.Premiums(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestStagesStandalone(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	records, err := p.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, records, 120)

	enriched, err := p.AnalyzeRisk(ctx)
	require.NoError(t, err)
	require.Len(t, enriched, 120)

	quotes, err := p.Premiums(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 120)
	assert.Equal(t, records[0].DriverID, quotes[0].DriverID)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil)

	_, err := p.Import(ctx)
	require.Error(t, err)

	st := memory.New()
	svcs := service.NewWithOptions(st, logger.Nop(), service.AccountOptions{})
	p.WithServices(svcs)

	_, err = p.Import(ctx)
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = p.Generate(ctx)
	require.NoError(t, err)
	n, err := p.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, n)

	summary, err := svcs.Premium().Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
}

func TestNewPaths(t *testing.T) {
	paths := NewPaths("data")
	assert.Equal(t, filepath.Join("data", "driver_data_with_risks.csv"), paths.Risk)
	assert.Equal(t, filepath.Join("data", "ml_results", "report.json"), paths.Report)
}
