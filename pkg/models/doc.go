// Package models defines the persistent entities, the composite-key
// conventions of the single wide table, and the model registry.
//
// Every entity lives in one table under a (PK, SK) primary key plus two
// global secondary indexes. Each entity's SetKeys method derives the
// base keys and the index projections from the entity fields, so
// projection discipline stays mechanical. The one key written outside
// SetKeys is a conversation's GSI1SK, which the chat turn update
// refreshes in the same ConvPrefix + updatedAt form.
package models
