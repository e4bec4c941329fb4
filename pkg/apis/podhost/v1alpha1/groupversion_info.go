// Package v1alpha1 contains the API Schema definition for the podhost
// v1alpha1 API group: the Repository custom resource that the orchestrator
// uses to advertise content repositories to node agents.
//
// +kubebuilder:object:generate=true
// +groupName=podhost.stackable.io
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// GroupVersion is the group/version used to register these objects.
	GroupVersion = schema.GroupVersion{Group: "podhost.stackable.io", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)
