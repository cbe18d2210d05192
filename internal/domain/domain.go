package domain

import (
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain/ingestion"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain/jobs"
)

type Clan = ingestion.Clan
type Member = ingestion.Member
type HeroLevels = ingestion.HeroLevels
type ClanSnapshot = ingestion.ClanSnapshot
type MemberSnapshotStat = ingestion.MemberSnapshotStat
type Enrichment = ingestion.Enrichment
type DerivedMetric = ingestion.DerivedMetric
type CanonicalMemberSnapshot = ingestion.CanonicalMemberSnapshot
type JoinerEvent = ingestion.JoinerEvent
type TenureEntry = ingestion.TenureEntry

type IngestionJobRow = jobs.IngestionJobRow
type JobRecord = jobs.JobRecord
type JobStep = jobs.JobStep
type LogEntry = jobs.LogEntry
type JobResult = jobs.JobResult
type Anomaly = jobs.Anomaly
type AnomalyKind = jobs.AnomalyKind
type JobStatus = jobs.JobStatus
type StepStatus = jobs.StepStatus
type LogLevel = jobs.LogLevel

const (
	JobPending   = jobs.JobPending
	JobRunning   = jobs.JobRunning
	JobCompleted = jobs.JobCompleted
	JobFailed    = jobs.JobFailed

	StepPending   = jobs.StepPending
	StepRunning   = jobs.StepRunning
	StepCompleted = jobs.StepCompleted
	StepFailed    = jobs.StepFailed
	StepSkipped   = jobs.StepSkipped

	LogDebug = jobs.LogDebug
	LogInfo  = jobs.LogInfo
	LogWarn  = jobs.LogWarn
	LogError = jobs.LogError

	AnomalyPhaseFailed = jobs.AnomalyPhaseFailed
	AnomalyZeroRows    = jobs.AnomalyZeroRows

	WindowLatest = ingestion.WindowLatest

	TenureSourceJoiner = ingestion.TenureSourceJoiner
	TenureSourceManual = ingestion.TenureSourceManual
)
