package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

func TestService(t *testing.T) {
	testutil.FreezeTime(t, time.Date(2024, time.November, 4, 10, 0, 0, 0, time.UTC))
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	stud := testutil.CreateStudent(t, svcs.Students, sch.ID, "Aïcha", "Mbemba", "6A", "2024-2025")

	newCert := func(certType string) certificate.NewCertificate {
		return certificate.NewCertificate{
			StudentID:       stud.ID,
			CertificateType: certType,
			SignatoryName:   "Jean Kabila",
			SignatoryTitle:  "Préfet des études",
		}
	}

	cert, err := svcs.Certificates.Create(ctx, sch.ID, newCert(certificate.TypeEnrollment), "")
	require.NoError(t, err)
	assert.Equal(t, "CERT-2024-0001", cert.SerialNumber)
	assert.Equal(t, certificate.StatusDraft, cert.Status)
	assert.Equal(t, "2024-2025", cert.AcademicYear, "academic year defaults to the student's")
	assert.Equal(t, core.NewDate(2024, time.November, 4), cert.IssueDate)
	assert.Equal(t, "Certificat de scolarité", cert.Title())

	second, err := svcs.Certificates.Create(ctx, sch.ID, newCert(certificate.TypeConduct), "")
	require.NoError(t, err)
	assert.Equal(t, "CERT-2024-0002", second.SerialNumber)

	t.Run("unknown student", func(t *testing.T) {
		nc := newCert(certificate.TypeConduct)
		nc.StudentID = "4d8f3f65-8e0c-4bd1-93e6-5f6b1f9a5e10"
		_, err := svcs.Certificates.Create(ctx, sch.ID, nc, "")
		assert.True(t, core.IsNotFound(err))

		third, err := svcs.Certificates.Create(ctx, sch.ID, newCert(certificate.TypeAttendance), "")
		require.NoError(t, err)
		assert.Equal(t, "CERT-2024-0003", third.SerialNumber, "failed creations do not consume serials")
	})

	t.Run("status flow", func(t *testing.T) {
		tests := []struct {
			to      string
			wantErr bool
		}{
			{certificate.StatusRevoked, true},
			{certificate.StatusIssued, false},
			{certificate.StatusDraft, true},
			{certificate.StatusRevoked, false},
			{certificate.StatusIssued, true},
		}
		c := cert
		for _, tc := range tests {
			got, err := svcs.Certificates.SetStatus(ctx, c, tc.to)
			if tc.wantErr {
				assert.True(t, core.IsState(err), "%s -> %s", c.Status, tc.to)
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
			c = got
		}
		assert.Equal(t, certificate.ErrIssued, svcs.Certificates.Delete(ctx, c))
	})

	t.Run("query and delete drafts", func(t *testing.T) {
		drafts, err := svcs.Certificates.Query(ctx, sch.ID, &certificate.QueryFilter{Statuses: []string{certificate.StatusDraft}}, nil)
		require.NoError(t, err)
		require.Len(t, drafts, 2)

		require.NoError(t, svcs.Certificates.Delete(ctx, second))
		_, err = svcs.Certificates.Get(ctx, sch.ID, second.ID)
		assert.True(t, core.IsNotFound(err))
	})
}
