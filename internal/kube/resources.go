package kube

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/VEEP09/xc-test-apim/internal/models"
)

const (
	nginxAPIVersion = "k8s.nginx.org/v1"

	KindPolicy        = "Policy"
	KindVirtualServer = "VirtualServer"

	// FieldManager identifies this service in managedFields.
	FieldManager = "apim-kubeapi"
)

var (
	PolicyGVR        = schema.GroupVersionResource{Group: "k8s.nginx.org", Version: "v1", Resource: "policies"}
	VirtualServerGVR = schema.GroupVersionResource{Group: "k8s.nginx.org", Version: "v1", Resource: "virtualservers"}
)

// AccessPolicyManifest builds the Policy resource for an IP access rule.
func AccessPolicyManifest(name string, mode models.AccessMode, ips []string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": nginxAPIVersion,
		"kind":       KindPolicy,
		"metadata": map[string]interface{}{
			"name": name,
			"labels": map[string]interface{}{
				"type": mode.TypeLabel(),
			},
		},
		"spec": map[string]interface{}{
			"accessControl": map[string]interface{}{
				mode.Field(): stringsToInterfaces(ips),
			},
		},
	}}
}

// AccessPolicyPatch is the merge patch replacing the address list of a Policy.
func AccessPolicyPatch(mode models.AccessMode, ips []string) ([]byte, error) {
	if ips == nil {
		ips = []string{}
	}
	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"accessControl": map[string]interface{}{
				mode.Field(): ips,
			},
		},
	}
	return json.Marshal(patch)
}

// AccessControlIPs reads spec.accessControl.<allow|deny> from a Policy.
func AccessControlIPs(obj *unstructured.Unstructured, mode models.AccessMode) ([]string, bool) {
	ips, found, err := unstructured.NestedStringSlice(obj.Object, "spec", "accessControl", mode.Field())
	if err != nil || !found {
		return nil, false
	}
	return ips, true
}

// VirtualServerManifest builds a VirtualServer resource.
func VirtualServerManifest(namespace, name string, spec models.VirtualServerSpec) (*unstructured.Unstructured, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&spec)
	if err != nil {
		return nil, fmt.Errorf("convert virtual server spec: %w", err)
	}
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": nginxAPIVersion,
		"kind":       KindVirtualServer,
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"spec": content,
	}}, nil
}

// SetVirtualServerSpec replaces the spec of an existing VirtualServer object.
func SetVirtualServerSpec(obj *unstructured.Unstructured, spec models.VirtualServerSpec) error {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&spec)
	if err != nil {
		return fmt.Errorf("convert virtual server spec: %w", err)
	}
	obj.Object["spec"] = content
	return nil
}

// VirtualServerFromUnstructured converts a VirtualServer resource to its API view.
func VirtualServerFromUnstructured(obj *unstructured.Unstructured) (models.VirtualServer, error) {
	vs := models.VirtualServer{
		Metadata: models.VirtualServerMetadata{
			UID:       string(obj.GetUID()),
			Name:      obj.GetName(),
			Namespace: obj.GetNamespace(),
		},
	}
	content, found, err := unstructured.NestedMap(obj.Object, "spec")
	if err != nil {
		return vs, fmt.Errorf("read spec of %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}
	if !found {
		return vs, nil
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(content, &vs.Spec); err != nil {
		return vs, fmt.Errorf("decode spec of %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}
	return vs, nil
}

func stringsToInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
