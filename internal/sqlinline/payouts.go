package sqlinline

const QInsertPayoutBatch = `--sql 0db16479-7e6a-4074-af20-a3f4ac6215fe
insert into payout_batches (creator_user_id, total_cents, currency)
values ($1::uuid, $2::bigint, $3::text)
returning id;
`

const QInsertPayoutItem = `--sql 31a79a4a-448a-40d5-9660-ee66c7f88cad
insert into payout_items (batch_id, creator_user_id, phone, amount_cents, currency, originator_conversation_id)
values ($1::uuid, $2::uuid, $3::text, $4::bigint, $5::text, $6::text)
returning id;
`

const QSelectPayoutItemForUpdate = `--sql 978451fd-ee7f-4e40-a698-b8aa1eedcbf5
select id, batch_id, creator_user_id, phone, amount_cents, currency, status,
       attempt_count, originator_conversation_id, provider_conversation_id
from payout_items
where id = $1::uuid
for update;
`

const QSelectPayoutItemByConversation = `--sql 5ffe4a9d-f903-4f5f-a048-d18cc6b14705
select id, batch_id, creator_user_id, phone, amount_cents, currency, status,
       attempt_count, originator_conversation_id, provider_conversation_id
from payout_items
where provider_conversation_id = $1::text
   or originator_conversation_id = $1::text
for update;
`

const QMarkPayoutItemDisbursing = `--sql 41e77795-0219-4908-bee1-55a50e97f5af
update payout_items set
    status = 'disbursing',
    attempt_count = attempt_count + 1,
    updated_at = now()
where id = $1::uuid
  and status in ('pending', 'failed');
`

const QSetPayoutItemConversation = `--sql 96218d01-71f0-4ac7-bbc1-2ba5fe1b246c
update payout_items set
    provider_conversation_id = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QMarkPayoutItemSucceeded = `--sql 975c9022-fa27-4ee1-933a-97cf231a4132
update payout_items set
    status = 'succeeded',
    provider_receipt = $2::text,
    result_code = $3::text,
    result_description = $4::text,
    disbursed_at = $5::timestamptz,
    updated_at = now()
where id = $1::uuid;
`

const QMarkPayoutItemFailed = `--sql 17ab11f6-8f15-4d24-a91c-0dab0cb769b9
update payout_items set
    status = 'failed',
    result_code = $2::text,
    result_description = $3::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectBatchItemStatuses = `--sql fc68555a-b818-49d8-9a13-a7f7bd7e4565
select status
from payout_items
where batch_id = $1::uuid;
`

const QUpdatePayoutBatchStatus = `--sql 7379622d-ca77-4b10-b734-5c0af2c63f50
update payout_batches set
    status = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectOrphanPendingItems = `--sql 8fb67fd6-3be6-4e41-84d3-f577cbd45b74
select id
from payout_items
where status = 'pending'
  and created_at < $1::timestamptz;
`

const QSelectRetryableFailedItems = `--sql 3104c725-8c44-46dd-9dcf-6e618b1659e7
select pi.id
from payout_items pi
where pi.status = 'failed'
  and exists (select 1 from donations d where d.payout_item_id = pi.id);
`
