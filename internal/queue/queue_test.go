package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The job payload is persisted on the broker across deploys, so its field
// names are a compatibility contract.
func TestSendJobWireFormat(t *testing.T) {
	data, err := json.Marshal(SendJob{
		TenantID:   "t1",
		CampaignID: "c1",
		LeadID:     "l1",
		StepID:     "s1",
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"tenant_id":"t1","campaign_id":"c1","lead_id":"l1","step_id":"s1"}`,
		string(data))

	var job SendJob
	require.NoError(t, json.Unmarshal(
		[]byte(`{"tenant_id":"t2","campaign_id":"c2","lead_id":"l2","step_id":"s2"}`), &job))
	assert.Equal(t, SendJob{TenantID: "t2", CampaignID: "c2", LeadID: "l2", StepID: "s2"}, job)
}
