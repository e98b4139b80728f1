package service

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/source"
)

func TestAudit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestIndex(t), WithEmbedder(newRecordingEmbedder()))
	_, err := svc.Sync(ctx, SyncRequest{Descriptions: patients})
	require.NoError(t, err)

	drifted := append([]string(nil), patients...)
	drifted[4] = "Paciente masculino de 24 años con asma."
	grown := append(append([]string(nil), patients...), "Paciente femenino de 19 años.")

	var testCases = []struct {
		description string
		texts       []string
		expect      *AuditReport
	}{
		{
			description: "in sync",
			texts:       patients,
			expect:      &AuditReport{Existing: 6, Total: 6, InSync: true},
		},
		{
			description: "drift missed by the probe",
			texts:       drifted,
			expect:      &AuditReport{Existing: 6, Total: 6, Drifted: []int{4}},
		},
		{
			description: "missing position",
			texts:       grown,
			expect:      &AuditReport{Existing: 6, Total: 7, Missing: []int{6}, ProbeDetects: true},
		},
		{
			description: "extra entries",
			texts:       patients[:5],
			expect:      &AuditReport{Existing: 6, Total: 5, Extra: []string{record.ID(5)}, ProbeDetects: true},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			report, err := svc.Audit(ctx, testCase.texts)
			require.NoError(t, err)
			if diff := cmp.Diff(testCase.expect, report); diff != "" {
				t.Errorf("audit mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuditSource(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	svc := newTestService(t, index, WithEmbedder(newRecordingEmbedder()))
	_, err := svc.AuditSource(ctx)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	svc = newTestService(t, index, WithEmbedder(newRecordingEmbedder()), WithSource(source.Static(patients)))
	report, err := svc.AuditSource(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, report.Missing)
	assert.True(t, report.ProbeDetects)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestIndex(t), WithEmbedder(newRecordingEmbedder()))

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Namespace: "demographic_patients_namespace", Samples: []string{}}, summary)

	_, err = svc.Sync(ctx, SyncRequest{Descriptions: patients})
	require.NoError(t, err)
	summary, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Namespace: "demographic_patients_namespace",
		Total:     6,
		WithEmail: 1,
		WithPhone: 1,
		Samples:   patients[:3],
	}, summary)
}
