package storage

import (
	"fmt"
	"strings"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
)

// Every query returning nodes projects them through nodeReturn.
const nodeReturn = `n.id AS id, labels(n) AS labels, properties(n) AS properties`

const relationshipReturn = `elementId(r) AS key, type(r) AS type, startNode(r).id AS from_id, endNode(r).id AS to_id, properties(r) AS properties`

const (
	cypherMatchEntities = `MATCH (n:Entity) WHERE n.id IN $ids
RETURN ` + nodeReturn

	cypherIncidentRelationships = `MATCH (n:Entity) WHERE n.id IN $ids
MATCH (n)-[r]-()
WITH DISTINCT r
RETURN ` + relationshipReturn

	cypherDeleteDetached = `MATCH (n:Entity) WHERE n.id IN $ids
DETACH DELETE n`

	cypherDeleteIsolated = `MATCH (n:Entity) WHERE n.id IN $ids AND NOT EXISTS { (n)--() }
WITH n, n.id AS id, labels(n) AS labels, properties(n) AS properties
DELETE n
RETURN id, labels, properties`

	cypherExistingIDs = `MATCH (n:Entity) WHERE n.id IN $ids
RETURN collect(DISTINCT n.id) AS ids`

	cypherLabels            = `CALL db.labels() YIELD label RETURN label ORDER BY label`
	cypherRelationshipTypes = `CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType ORDER BY relationshipType`
)

// cypherCreateEntity creates a node with the Entity label and label.
func cypherCreateEntity(label string) string {
	return fmt.Sprintf(`CREATE (n:Entity:%s)
SET n = $properties
RETURN %s`, graph.QuoteIdentifier(label), nodeReturn)
}

// cypherCreateRelationship links the first matching pair of endpoints, so a
// request creates at most one edge even when ids are duplicated.
func cypherCreateRelationship(relType string) string {
	return fmt.Sprintf(`MATCH (a:Entity {id: $from_id}), (b:Entity {id: $to_id})
WITH a, b LIMIT 1
CREATE (a)-[r:%s]->(b)
SET r = $properties
RETURN %s`, graph.QuoteIdentifier(relType), relationshipReturn)
}

// cypherSearch compiles p into a parameterized Cypher query.
// Values are compared through toStringOrNull so numbers and booleans match
// as text; list values never match.
func cypherSearch(p graph.Predicate) (string, map[string]any) {
	params := map[string]any{}

	var b strings.Builder
	b.WriteString("MATCH (n:Entity")
	if p.Label != "" {
		b.WriteString(":" + graph.QuoteIdentifier(p.Label))
	}
	b.WriteString(")\n")

	if where, ok := searchWhere(p, params); ok {
		b.WriteString("WHERE " + where + "\n")
	}

	if p.IncludeRelationships {
		b.WriteString(`OPTIONAL MATCH (n)-[r]-(related)
WITH n, collect(CASE WHEN r IS NULL THEN NULL ELSE {
  type: type(r),
  direction: CASE WHEN startNode(r) = n THEN 'outgoing' ELSE 'incoming' END,
  node: {
    id: related.id,
    type: head([l IN labels(related) WHERE l <> 'Entity'] + labels(related)),
    properties: properties(related)
  }
} END) AS relationships
`)
		b.WriteString("RETURN " + nodeReturn + ", relationships")
	} else {
		b.WriteString("RETURN " + nodeReturn)
	}
	return b.String(), params
}

func searchWhere(p graph.Predicate, params map[string]any) (string, bool) {
	switch p.Mode {
	case graph.PropertiesPresent:
		clauses := make([]string, len(p.Properties))
		for i, prop := range p.Properties {
			clauses[i] = fmt.Sprintf("n.%s IS NOT NULL", graph.QuoteIdentifier(prop))
		}
		return "(" + strings.Join(clauses, " OR ") + ")", true

	case graph.PropertiesMatch:
		clauses := make([]string, len(p.Properties))
		if p.Fuzzy {
			for i, w := range p.Words {
				params[fmt.Sprintf("word_%d", i)] = w
			}
			for i, prop := range p.Properties {
				value := fmt.Sprintf("toLower(toStringOrNull(n.%s))", graph.QuoteIdentifier(prop))
				words := make([]string, len(p.Words))
				for j := range p.Words {
					words[j] = fmt.Sprintf("%s CONTAINS toLower($word_%d)", value, j)
				}
				clauses[i] = "(" + strings.Join(words, " OR ") + ")"
			}
		} else {
			params["term"] = p.Term
			for i, prop := range p.Properties {
				clauses[i] = fmt.Sprintf("toStringOrNull(n.%s) = $term", graph.QuoteIdentifier(prop))
			}
		}
		return "(" + strings.Join(clauses, " OR ") + ")", true

	case graph.AnyProperty:
		params["term"] = p.Term
		if p.Fuzzy {
			return "ANY(k IN keys(n) WHERE toLower(toStringOrNull(n[k])) CONTAINS toLower($term))", true
		}
		return "ANY(k IN keys(n) WHERE toStringOrNull(n[k]) = $term)", true
	}
	return "", false
}

// cypherApply builds the SET and REMOVE clauses of a mutation.
func cypherApply(m graph.Mutation) (string, map[string]any) {
	params := map[string]any{"id": m.ID}

	var sets, removes []string
	if len(m.Set) > 0 {
		params["props"] = m.Set
		sets = append(sets, "n += $props")
	}
	for _, l := range m.AddLabels {
		sets = append(sets, "n:"+graph.QuoteIdentifier(l))
	}
	for _, k := range m.Remove {
		removes = append(removes, "n."+graph.QuoteIdentifier(k))
	}
	for _, l := range m.RemoveLabels {
		removes = append(removes, "n:"+graph.QuoteIdentifier(l))
	}

	var b strings.Builder
	b.WriteString("MATCH (n:Entity) WHERE n.id = $id\n")
	if len(sets) > 0 {
		b.WriteString("SET " + strings.Join(sets, ", ") + "\n")
	}
	if len(removes) > 0 {
		b.WriteString("REMOVE " + strings.Join(removes, ", ") + "\n")
	}
	b.WriteString("RETURN " + nodeReturn)
	return b.String(), params
}

func cypherNodePropertyKeys(label string) string {
	return fmt.Sprintf(`MATCH (n:%s)
WITH n LIMIT $sample
UNWIND keys(n) AS key
RETURN collect(DISTINCT key) AS keys`, graph.QuoteIdentifier(label))
}

func cypherRelationshipPropertyKeys(relType string) string {
	return fmt.Sprintf(`MATCH ()-[r:%s]->()
WITH r LIMIT $sample
UNWIND keys(r) AS key
RETURN collect(DISTINCT key) AS keys`, graph.QuoteIdentifier(relType))
}
