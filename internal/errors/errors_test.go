package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderKeepsExplicitFields(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("disk gone")).
		Component("datastore").
		Category(CategoryStorage).
		Priority("bogus").
		Context("operation", "save_model").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, CategoryStorage, ee.Category)
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, "save_model", ee.GetContext()["operation"])
	assert.True(t, IsCategory(ee, CategoryStorage))
	assert.False(t, IsCategory(ee, CategoryValidation))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	SetTelemetryReporter(nil)

	inner := New(NewStd("row missing")).Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("lookup: %w", inner)).Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.True(t, IsNotFound(outer))
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("context: %w", sentinel)).Category(CategoryState).Build()

	require.ErrorIs(t, ee, sentinel)
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("model load failed")).Build()

	require.Len(t, rec.reported, 1)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryModelLoad, ee.Category)
}

func TestScrubMessageForPrivacy(t *testing.T) {
	scrubbed := scrubMessageForPrivacy("Error at https://api.github.com/repos?access_token=secret123")
	assert.Equal(t, "Error at https://api.github.com/repos?[REDACTED]", scrubbed)

	scrubbed = scrubMessageForPrivacy("sync failed with token=abc123 and passphrase=hunter2")
	assert.NotContains(t, scrubbed, "abc123")
	assert.NotContains(t, scrubbed, "hunter2")
	assert.True(t, strings.Contains(scrubbed, "[SECRET_REDACTED]"))
}

func TestCategoryFromComponent(t *testing.T) {
	SetTelemetryReporter(&recordingReporter{})
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	tests := []struct {
		component string
		want      ErrorCategory
	}{
		{"mqtt", CategoryMQTTConnection},
		{"buildinfo", CategoryNetwork},
		{"datastore", CategoryStorage},
		{"notify", CategoryGeneric},
	}
	for _, tt := range tests {
		ee := New(NewStd("something broke")).Component(tt.component).Build()
		assert.Equal(t, tt.want, ee.Category, tt.component)
	}
}
