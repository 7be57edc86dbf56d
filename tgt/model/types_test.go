// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAclMode(t *testing.T) {
	tests := []struct {
		name    string
		aclList []string
		want    string
	}{
		{"empty", []string{}, AclModeWhitelist},
		{"nil", nil, AclModeWhitelist},
		{"initiators", []string{"iqn.a", "10.0.0.1"}, AclModeWhitelist},
		{"sentinel only", []string{"ALL"}, AclModeAllowAll},
		{"sentinel wins", []string{"iqn.a", "ALL"}, AclModeAllowAll},
		{"case sensitive", []string{"all"}, AclModeWhitelist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &Target{AclList: tt.aclList}
			assert.Equal(t, tt.want, target.AclMode())
		})
	}
}

func TestTargetMarshalJSON(t *testing.T) {
	backingStore := "/disk/a"
	target := &Target{
		Tid:      1,
		Name:     "iqn.t1",
		Luns:     []*Lun{{LunID: 1, Size: "1.00 GB", BackingStore: &backingStore}, {LunID: 2}},
		AclList:  []string{"ALL"},
		Sessions: []*Session{},
	}
	data, err := json.Marshal(target)
	assert.Nil(t, err)

	var decoded map[string]interface{}
	assert.Nil(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "allow-all", decoded["acl_mode"])
	assert.Equal(t, float64(1), decoded["tid"])
	assert.Equal(t, []interface{}{}, decoded["nexus_information"])
	assert.NotContains(t, decoded, "system_information")

	luns := decoded["luns"].([]interface{})
	assert.Equal(t, "/disk/a", luns[0].(map[string]interface{})["backing_store"])
	assert.Nil(t, luns[1].(map[string]interface{})["backing_store"])
	assert.Contains(t, luns[1].(map[string]interface{}), "backing_store")
}

func TestGetLun(t *testing.T) {
	target := &Target{Luns: []*Lun{{LunID: 1}, {LunID: 3}}}
	assert.Equal(t, 3, target.GetLun(3).LunID)
	assert.Nil(t, target.GetLun(2))
	assert.Equal(t, "", target.GetLun(1).BackingStorePath())
}
