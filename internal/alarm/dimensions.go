package alarm

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// Identifying dimension key per resource type.
var identityDimension = map[config.ResourceType]string{
	config.ResourceEC2: "InstanceId",
	config.ResourceRDS: "DBInstanceIdentifier",
	config.ResourceALB: "LoadBalancer",
}

// IdentityDimension returns the dimension key that carries a resource's
// identifier in CloudWatch, e.g. "InstanceId" for EC2 instances.
func IdentityDimension(rt config.ResourceType) (string, bool) {
	key, ok := identityDimension[rt]
	return key, ok
}

const (
	targetGroupDimension = "TargetGroup"

	// unknownRelated is the sentinel dimension value recorded when a
	// composite resource has no known sub-resources.
	unknownRelated = "unknown"
)

// dimensionSet is one concrete dimension combination for an alarm. Suffix
// distinguishes the alarm name from sibling combinations; it is empty when
// the combination is already unique for the resource/metric pair.
type dimensionSet struct {
	dimensions []types.Dimension
	suffix     string
}

// resolveDimensions maps a resource onto its alarm dimension combinations.
// Plain resources yield a single set with the identifying dimension.
// Composite resources yield one set per related sub-resource, tagged with
// both the parent and child identifiers; with no related sub-resources a
// single set with the "unknown" sentinel is returned. Unsupported resource
// types yield nothing.
func resolveDimensions(res Resource) []dimensionSet {
	key, ok := identityDimension[res.Type]
	if !ok {
		return nil
	}

	base := types.Dimension{Name: aws.String(key), Value: aws.String(res.ID)}

	if res.Type != config.ResourceALB {
		return []dimensionSet{{dimensions: []types.Dimension{base}}}
	}

	if len(res.Related) == 0 {
		return []dimensionSet{{
			dimensions: []types.Dimension{base, {
				Name:  aws.String(targetGroupDimension),
				Value: aws.String(unknownRelated),
			}},
		}}
	}

	sets := make([]dimensionSet, 0, len(res.Related))
	for _, rel := range res.Related {
		sets = append(sets, dimensionSet{
			dimensions: []types.Dimension{base, {
				Name:  aws.String(targetGroupDimension),
				Value: aws.String(rel),
			}},
			suffix: relatedSuffix(rel),
		})
	}
	return sets
}

// relatedSuffix extracts the short name from a "targetgroup/<name>/<hash>"
// dimension value, falling back to the raw value.
func relatedSuffix(rel string) string {
	if parts := strings.Split(rel, "/"); len(parts) == 3 {
		return parts[1]
	}
	return rel
}
