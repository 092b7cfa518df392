package sqlinline

const QSumSucceededDonations = `--sql 0a4f5da9-087f-472f-ada0-22de09920dc5
select coalesce(sum(amount_cents), 0)
from donations
where status = 'succeeded'
  and donated_at >= $1::timestamptz
  and donated_at < $2::timestamptz;
`

const QSumStatementCollections = `--sql 57cdba3e-5b9f-46ca-9a77-6abb77318342
select coalesce(sum(amount_cents), 0)
from provider_statements
where kind = 'collection'
  and transacted_at >= $1::timestamptz
  and transacted_at < $2::timestamptz;
`

const QSumLedgerCashDelta = `--sql f71dda42-e989-4fcd-9b05-de352571efdb
select coalesce(sum(c.cash_delta_cents), 0)
from company_ledger_entries c
join journal_entries j on j.id = c.journal_entry_id
where j.event_type = $1::text
  and j.posted_at >= $2::timestamptz
  and j.posted_at < $3::timestamptz;
`

const QSumLedgerPayoutAmounts = `--sql 80b52ca6-61fe-4068-ae08-263735025db2
select coalesce(sum(-c.cash_delta_cents - c.expense_cents), 0)
from company_ledger_entries c
join journal_entries j on j.id = c.journal_entry_id
where j.event_type = $1::text
  and j.posted_at >= $2::timestamptz
  and j.posted_at < $3::timestamptz;
`

const QSumSucceededPayouts = `--sql 3d4071ad-1479-4062-8ddc-723cdeb58722
select coalesce(sum(amount_cents), 0)
from payout_items
where status = 'succeeded'
  and disbursed_at >= $1::timestamptz
  and disbursed_at < $2::timestamptz;
`

const QSumStatementPayouts = `--sql 577dfa5d-5223-4b75-8bd0-ffc81edcc5bc
select coalesce(sum(amount_cents), 0)
from provider_statements
where kind = 'payout'
  and transacted_at >= $1::timestamptz
  and transacted_at < $2::timestamptz;
`

const QSelectDonationsMissingJournal = `--sql b81b01a8-0820-47b5-bd17-737f62372047
select id, amount_cents, creator_share_cents, platform_share_cents, platform_vat_cents,
       creator_user_id, currency, donated_at
from donations
where status = 'succeeded'
  and journal_entry_id is null
order by donated_at asc
limit $1::int;
`

const QLinkDonationJournal = `--sql 7c6de9ea-437c-4c68-a797-e354b224f0be
update donations set
    journal_entry_id = $2::uuid,
    updated_at = now()
where id = $1::uuid
  and journal_entry_id is null;
`
