package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

// ScheduleGVR identifies the ScalingSchedule custom resource.
var ScheduleGVR = schema.GroupVersionResource{
	Group:    "easyscale.io",
	Version:  "v1",
	Resource: "scalingschedules",
}

// CRDSource loads ScalingSchedule custom resources from the cluster,
// so schedules can be managed with kubectl alongside rule files.
type CRDSource struct {
	client dynamic.Interface
}

func NewCRDSource(client dynamic.Interface) *CRDSource {
	return &CRDSource{client: client}
}

// List returns every valid ScalingSchedule resource; an empty namespace
// means all namespaces. Resources that fail to parse or validate are
// logged and skipped, like the directory loader's per-file behavior.
func (s *CRDSource) List(ctx context.Context, namespace string) ([]*models.ScalingSchedule, error) {
	var (
		list *unstructured.UnstructuredList
		err  error
	)
	if namespace == "" {
		list, err = s.client.Resource(ScheduleGVR).List(ctx, metav1.ListOptions{})
	} else {
		list, err = s.client.Resource(ScheduleGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s resources: %w", ScheduleGVR.Resource, err)
	}

	schedules := make([]*models.ScalingSchedule, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]

		schedule, err := fromUnstructured(item)
		if err != nil {
			logger.WithField("resource", item.GetName()).Errorf("Skipping resource: %v", err)
			continue
		}

		result := Validate(schedule)
		for _, warning := range result.Warnings {
			logger.WithField("resource", schedule.Metadata.Name).Warn(warning)
		}
		if !result.Valid() {
			logger.WithField("resource", schedule.Metadata.Name).Errorf(
				"Skipping invalid schedule: %s", strings.Join(result.Errors, "; "),
			)
			continue
		}

		schedules = append(schedules, schedule)
	}

	logger.Debugf("Loaded %d schedule resource(s) from the cluster", len(schedules))
	return schedules, nil
}

// fromUnstructured rebuilds a plain manifest from the server object.
// The server decorates metadata with uid, managedFields and friends,
// which the strict parser must never see; only name, namespace and the
// spec carry meaning here.
func fromUnstructured(obj *unstructured.Unstructured) (*models.ScalingSchedule, error) {
	doc := map[string]interface{}{
		"apiVersion": obj.GetAPIVersion(),
		"kind":       obj.GetKind(),
		"metadata": map[string]interface{}{
			"name":      obj.GetName(),
			"namespace": obj.GetNamespace(),
		},
		"spec": obj.Object["spec"],
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return LoadFromBytes(data)
}
