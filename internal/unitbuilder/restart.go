package unitbuilder

import (
	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
)

// MapRestartPolicy maps a pod-level restart policy to the systemd Restart=
// value. Every value outside the three
// Kubernetes restart policies is rejected — the mapping is total over
// {Always, OnFailure, Never} and nothing else.
func MapRestartPolicy(policy corev1.RestartPolicy) (string, error) {
	switch policy {
	case corev1.RestartPolicyAlways:
		return "always", nil
	case corev1.RestartPolicyOnFailure:
		return "on-failure", nil
	case corev1.RestartPolicyNever:
		return "no", nil
	default:
		return "", agenterror.NewValidation("unknown restart policy %q", policy)
	}
}
