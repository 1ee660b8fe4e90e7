package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttributes(t *testing.T) {
	attrs, err := NewAttributes(DefaultNamespace, DefaultAttributeNames())
	require.NoError(t, err)

	assert.Equal(t, "logical_quotas::maximum_number_of_data_objects", attrs.MaximumNumberOfDataObjects())
	assert.Equal(t, "logical_quotas::maximum_size_in_bytes", attrs.MaximumSizeInBytes())
	assert.Equal(t, "logical_quotas::total_number_of_data_objects", attrs.TotalNumberOfDataObjects())
	assert.Equal(t, "logical_quotas::total_size_in_bytes", attrs.TotalSizeInBytes())
	assert.Len(t, attrs.Names(), 4)

	assert.True(t, attrs.IsReserved("logical_quotas::total_size_in_bytes"))
	assert.False(t, attrs.IsReserved("total_size_in_bytes"))
	assert.Equal(t, KeyTotalSizeInBytes, attrs.StatusKey(attrs.TotalSizeInBytes()))
	assert.Empty(t, attrs.StatusKey("other"))
}

func TestNewAttributes_Invalid(t *testing.T) {
	valid := DefaultAttributeNames()

	tests := []struct {
		name      string
		namespace string
		mutate    func(n *AttributeNames)
	}{
		{name: "empty namespace", namespace: " "},
		{name: "empty max objects", namespace: "ns", mutate: func(n *AttributeNames) { n.MaximumNumberOfDataObjects = "" }},
		{name: "empty total bytes", namespace: "ns", mutate: func(n *AttributeNames) { n.TotalSizeInBytes = "" }},
		{name: "separator in name", namespace: "ns", mutate: func(n *AttributeNames) { n.MaximumSizeInBytes = "a::b" }},
		{name: "duplicate names", namespace: "ns", mutate: func(n *AttributeNames) { n.TotalSizeInBytes = n.TotalNumberOfDataObjects }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := valid
			if tt.mutate != nil {
				tt.mutate(&names)
			}
			_, err := NewAttributes(tt.namespace, names)
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrConfigurationMissing), "got %v", err)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Logical Quotas Policy: Insufficient privileges", NewInsufficientPrivilegesError().Error())
	assert.Equal(t,
		"Logical Quotas Policy Violation: Adding object exceeds maximum number of objects limit [/zone/home]",
		NewObjectCountExceededError("/zone/home").Error())
	assert.True(t, IsViolation(NewSizeExceededError("/zone")))
	assert.False(t, IsViolation(NewNotMonitoredError("/zone")))
}
